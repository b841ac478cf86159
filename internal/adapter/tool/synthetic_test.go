package tool

import (
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"
)

func testNow() time.Time {
	return time.Date(2026, 3, 15, 10, 30, 0, 0, time.UTC)
}

func newTestSynthesizer() *Synthesizer {
	return NewSynthesizerWithSeed(42, testNow)
}

func TestCalculateROI(t *testing.T) {
	got := CalculateROI(ROIInput{
		ProjectType:       "solar",
		InitialInvestment: 100000,
		AnnualRevenue:     20000,
		AnnualCosts:       5000,
		ProjectLifetime:   25,
	})

	if got.NetAnnualCashFlow != 15000 {
		t.Errorf("net cash flow = %v, want 15000", got.NetAnnualCashFlow)
	}
	if got.PaybackYears == nil || *got.PaybackYears != 6.67 {
		t.Errorf("payback = %v, want 6.67", got.PaybackYears)
	}
	if got.TotalProfit != 275000 {
		t.Errorf("total profit = %v, want 275000", got.TotalProfit)
	}
	if got.ROIPercentage != 275.0 {
		t.Errorf("roi = %v, want 275.0", got.ROIPercentage)
	}
	if got.IRRPercentage != 15.0 {
		t.Errorf("irr = %v, want 15.0", got.IRRPercentage)
	}
}

func TestCalculateROINeverPaysBack(t *testing.T) {
	got := CalculateROI(ROIInput{
		InitialInvestment: 100000,
		AnnualRevenue:     5000,
		AnnualCosts:       8000,
		ProjectLifetime:   10,
	})

	if got.PaybackYears != nil {
		t.Errorf("payback = %v, want nil for negative cash flow", *got.PaybackYears)
	}
	if got.NetAnnualCashFlow != -3000 {
		t.Errorf("net cash flow = %v, want -3000", got.NetAnnualCashFlow)
	}
}

func TestFetchRenewableDataSeries(t *testing.T) {
	s := newTestSynthesizer()

	payload, err := s.Run(NameFetchRenewableData, json.RawMessage(
		`{"energy_type":"solar","time_period":"last_week"}`))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	var result struct {
		Status     string `json:"status"`
		EnergyType string `json:"energy_type"`
		TimePeriod string `json:"time_period"`
		Data       []struct {
			Date      string  `json:"date"`
			OutputMWh float64 `json:"output_mwh"`
		} `json:"data"`
		Metadata map[string]interface{} `json:"metadata"`
	}
	if err := json.Unmarshal(payload, &result); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if result.Status != "success" {
		t.Errorf("status = %q", result.Status)
	}
	if len(result.Data) != 7 {
		t.Errorf("points = %d, want 7 for last_week", len(result.Data))
	}
	for _, pt := range result.Data {
		// solar: base 100, variance 30
		if pt.OutputMWh < 70 || pt.OutputMWh > 130 {
			t.Errorf("output %v outside solar range [70,130]", pt.OutputMWh)
		}
	}
	if _, ok := result.Metadata["panel_count"]; !ok {
		t.Errorf("solar metadata missing panel_count: %v", result.Metadata)
	}
}

func TestFetchRenewableDataDefaultsPeriod(t *testing.T) {
	s := newTestSynthesizer()

	payload, err := s.Run(NameFetchRenewableData, json.RawMessage(`{"energy_type":"tidal"}`))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	var result struct {
		TimePeriod string `json:"time_period"`
		Data       []json.RawMessage
	}
	if err := json.Unmarshal(payload, &result); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if result.TimePeriod != "last_month" {
		t.Errorf("time_period = %q, want last_month default", result.TimePeriod)
	}
}

func TestCreateDashboardIDFormat(t *testing.T) {
	s := newTestSynthesizer()

	payload, err := s.Run(NameCreateDashboard, json.RawMessage(
		`{"dashboard_type":"cbg","title":"Village CBG Plant"}`))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	var result struct {
		DashboardID string `json:"dashboard_id"`
		URL         string `json:"url"`
		Message     string `json:"message"`
	}
	if err := json.Unmarshal(payload, &result); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if result.DashboardID != "cbg_20260315103000" {
		t.Errorf("dashboard_id = %q", result.DashboardID)
	}
	if result.URL != "/dashboards/cbg_20260315103000" {
		t.Errorf("url = %q", result.URL)
	}
	if result.Message != "Dashboard 'Village CBG Plant' created successfully" {
		t.Errorf("message = %q", result.Message)
	}
}

func TestPolicyInformation(t *testing.T) {
	payload, err := policyInformation(json.RawMessage(`{"country":"US","region":"California"}`))
	if err != nil {
		t.Fatalf("policyInformation: %v", err)
	}

	var result struct {
		Count    int      `json:"count"`
		Policies []policy `json:"policies"`
	}
	if err := json.Unmarshal(payload, &result); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	// 3 federal + 2 California.
	if result.Count != 5 {
		t.Errorf("count = %d, want 5", result.Count)
	}

	foundNEM := false
	for _, p := range result.Policies {
		if strings.Contains(p.Name, "NEM") {
			foundNEM = true
		}
	}
	if !foundNEM {
		t.Error("California region should include NEM")
	}
}

func TestPolicyInformationTypeFilter(t *testing.T) {
	payload, err := policyInformation(json.RawMessage(
		`{"country":"us","policy_type":"TAX_INCENTIVES"}`))
	if err != nil {
		t.Fatalf("policyInformation: %v", err)
	}

	var result struct {
		Policies []policy `json:"policies"`
	}
	if err := json.Unmarshal(payload, &result); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if len(result.Policies) != 2 {
		t.Fatalf("policies = %d, want 2 tax incentives", len(result.Policies))
	}
	for _, p := range result.Policies {
		if p.Type != "tax_incentives" {
			t.Errorf("policy %q has type %q", p.Name, p.Type)
		}
	}
}

func TestSearchRenewableDatabase(t *testing.T) {
	payload, err := searchRenewableDatabase(json.RawMessage(
		`{"query":"wind","filter_by":"project"}`))
	if err != nil {
		t.Fatalf("search: %v", err)
	}

	var result struct {
		Count   int           `json:"count"`
		Results []searchEntry `json:"results"`
	}
	if err := json.Unmarshal(payload, &result); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if result.Count != 1 {
		t.Fatalf("count = %d, want 1, results %+v", result.Count, result.Results)
	}
	if result.Results[0].Title != "Wind Farm North Sea Expansion" {
		t.Errorf("title = %q", result.Results[0].Title)
	}
}

func TestSearchRenewableDatabaseLimit(t *testing.T) {
	payload, err := searchRenewableDatabase(json.RawMessage(`{"query":"","max_results":2}`))
	if err != nil {
		t.Fatalf("search: %v", err)
	}

	var result struct {
		Count int `json:"count"`
	}
	if err := json.Unmarshal(payload, &result); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if result.Count != 2 {
		t.Errorf("count = %d, want 2", result.Count)
	}
}

// One Synthesizer serves parallel tool dispatch and concurrent HTTP
// handlers at once; every goroutine here shares the generator.
func TestSynthesizerConcurrentRuns(t *testing.T) {
	s := NewSynthesizer()

	const workers = 8
	errs := make([]error, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 25; j++ {
				_, err := s.Run(NameFetchRenewableData, json.RawMessage(
					`{"energy_type":"wind","time_period":"last_week"}`))
				if err != nil {
					errs[i] = err
					return
				}
			}
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Errorf("worker %d: %v", i, err)
		}
	}
}

func TestSyntheticUnknownTool(t *testing.T) {
	s := newTestSynthesizer()
	if _, err := s.Run("nope", json.RawMessage(`{}`)); err == nil {
		t.Fatal("expected error for unknown generator")
	}
}
