package tool

import (
	"encoding/json"

	"wattwise/internal/domain"
)

// Tool names. These match the remote service's handlers one to one.
const (
	NameFetchRenewableData      = "fetch_renewable_data"
	NameCreateDashboard         = "create_dashboard"
	NameCalculateROI            = "calculate_roi"
	NameGetPolicyInformation    = "get_policy_information"
	NameSearchRenewableDatabase = "search_renewable_database"
)

// Definitions returns the built-in tool set in its canonical order. The
// order is stable: it is the order tools are advertised to providers and
// listed by the tool service.
func Definitions() []domain.ToolDefinition {
	return []domain.ToolDefinition{
		{
			Name:        NameFetchRenewableData,
			Description: "Fetch renewable energy production data for a given energy type, location and time period",
			Parameters: json.RawMessage(`{
				"type": "object",
				"properties": {
					"energy_type": {
						"type": "string",
						"description": "Type of renewable energy (solar, wind, hydro, geothermal, biogas, cbg)"
					},
					"location": {
						"type": "string",
						"description": "Geographic location or region"
					},
					"time_period": {
						"type": "string",
						"description": "Time period for data (last_week, last_month, last_year)"
					}
				},
				"required": ["energy_type"]
			}`),
		},
		{
			Name:        NameCreateDashboard,
			Description: "Create a monitoring dashboard for a renewable energy project",
			Parameters: json.RawMessage(`{
				"type": "object",
				"properties": {
					"dashboard_type": {
						"type": "string",
						"enum": ["cbg", "solar_farm", "wind_farm", "hybrid_plant"],
						"description": "Type of dashboard to create"
					},
					"title": {
						"type": "string",
						"description": "Dashboard title"
					},
					"description": {
						"type": "string",
						"description": "Optional dashboard description"
					}
				},
				"required": ["dashboard_type", "title"]
			}`),
		},
		{
			Name:        NameCalculateROI,
			Description: "Calculate return on investment metrics for a renewable energy project",
			Parameters: json.RawMessage(`{
				"type": "object",
				"properties": {
					"project_type": {
						"type": "string",
						"description": "Type of renewable energy project"
					},
					"initial_investment": {
						"type": "number",
						"description": "Initial investment amount"
					},
					"annual_revenue": {
						"type": "number",
						"description": "Expected annual revenue"
					},
					"annual_costs": {
						"type": "number",
						"description": "Expected annual operating costs"
					},
					"project_lifetime": {
						"type": "number",
						"description": "Project lifetime in years"
					}
				},
				"required": ["project_type", "initial_investment", "annual_revenue", "project_lifetime"]
			}`),
		},
		{
			Name:        NameGetPolicyInformation,
			Description: "Get renewable energy policies and incentives for a country or region",
			Parameters: json.RawMessage(`{
				"type": "object",
				"properties": {
					"country": {
						"type": "string",
						"description": "Country to get policy information for"
					},
					"region": {
						"type": "string",
						"description": "Optional state or region"
					},
					"policy_type": {
						"type": "string",
						"description": "Filter by policy type (tax_incentives, subsidies, regulations, funding)"
					}
				},
				"required": ["country"]
			}`),
		},
		{
			Name:        NameSearchRenewableDatabase,
			Description: "Search the renewable energy knowledge base for projects, companies and technologies",
			Parameters: json.RawMessage(`{
				"type": "object",
				"properties": {
					"query": {
						"type": "string",
						"description": "Search query"
					},
					"filter_by": {
						"type": "string",
						"description": "Optional category filter (technology, project, company, location)"
					},
					"max_results": {
						"type": "number",
						"description": "Maximum number of results to return (default 5)"
					}
				},
				"required": ["query"]
			}`),
		},
	}
}
