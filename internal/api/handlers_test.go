package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"example.com/healthdata/internal/domain"
	"example.com/healthdata/internal/persistence/memory"
)

func newTestHandler() *Handler {
	return NewHandler(domain.NewService(memory.NewStore(), nil))
}

func postBody(t *testing.T, handler *Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/health-data", strings.NewReader(body))
	rr := httptest.NewRecorder()
	handler.healthData(rr, req)
	return rr
}

func TestUploadAndQueryRoundTrip(t *testing.T) {
	handler := newTestHandler()

	rr := postBody(t, handler, `{
        "subject_id": "subject-1",
        "data": {
            "2024-02-01": {"step_count": 100, "distance": 1.2, "heart_rate_samples": [60, 70]},
            "2024-02-02": {"step_count": 200, "categories": {"Walking": [1, 2]}}
        }
    }`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rr.Code, rr.Body.String())
	}

	var upload UploadResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &upload); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !strings.Contains(upload.Message, "subject-1") {
		t.Fatalf("unexpected message %q", upload.Message)
	}

	req := httptest.NewRequest(http.MethodGet, "/health-data?subject_id=subject-1", nil)
	rr = httptest.NewRecorder()
	handler.healthData(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rr.Code, rr.Body.String())
	}

	var resp QueryResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.SubjectID != "subject-1" {
		t.Fatalf("unexpected subject %q", resp.SubjectID)
	}
	if len(resp.Data) != 2 {
		t.Fatalf("expected 2 records got %d", len(resp.Data))
	}
	if resp.Data[0].Date != "2024-02-01" || resp.Data[1].Date != "2024-02-02" {
		t.Fatalf("expected ascending dates got %s, %s", resp.Data[0].Date, resp.Data[1].Date)
	}
	if resp.Data[0].AvgHeartRate == nil || *resp.Data[0].AvgHeartRate != 65.0 {
		t.Fatalf("expected avg 65.0 got %v", resp.Data[0].AvgHeartRate)
	}
	if len(resp.Data[1].Categories["Walking"]) != 2 {
		t.Fatalf("expected Walking [1 2] got %v", resp.Data[1].Categories)
	}
}

func TestUploadMergesResubmittedDate(t *testing.T) {
	handler := newTestHandler()

	for i := 0; i < 2; i++ {
		rr := postBody(t, handler, `{"subject_id": "subject-1", "data": {"2024-02-01": {"step_count": 75}}}`)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected 200 got %d: %s", rr.Code, rr.Body.String())
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/health-data?subject_id=subject-1", nil)
	rr := httptest.NewRecorder()
	handler.healthData(rr, req)

	var resp QueryResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Data[0].StepCount != 150 {
		t.Fatalf("expected accumulated step_count 150 got %d", resp.Data[0].StepCount)
	}
}

func TestUploadRejectsEmptyData(t *testing.T) {
	handler := newTestHandler()

	rr := postBody(t, handler, `{"subject_id": "subject-1", "data": {}}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rr.Code)
	}

	var resp map[string]string
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp["error"] == "" {
		t.Fatal("expected error message in body")
	}
}

func TestUploadRejectsMissingSubject(t *testing.T) {
	handler := newTestHandler()

	rr := postBody(t, handler, `{"data": {"2024-02-01": {"step_count": 1}}}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rr.Code)
	}
}

func TestUploadRejectsMalformedBody(t *testing.T) {
	handler := newTestHandler()

	rr := postBody(t, handler, `{"subject_id": "subject-1", "data": ["not", "a", "mapping"]}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rr.Code)
	}
}

func TestGetRequiresSubjectID(t *testing.T) {
	handler := newTestHandler()

	req := httptest.NewRequest(http.MethodGet, "/health-data", nil)
	rr := httptest.NewRecorder()
	handler.healthData(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rr.Code)
	}
}

func TestGetUnknownSubjectNotFound(t *testing.T) {
	handler := newTestHandler()

	req := httptest.NewRequest(http.MethodGet, "/health-data?subject_id=nobody", nil)
	rr := httptest.NewRecorder()
	handler.healthData(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", rr.Code)
	}
}

func TestGetFiltersByDateRange(t *testing.T) {
	handler := newTestHandler()

	rr := postBody(t, handler, `{
        "subject_id": "subject-1",
        "data": {
            "2024-01-31": {"step_count": 1},
            "2024-02-01": {"step_count": 2},
            "2024-02-07": {"step_count": 3},
            "2024-02-08": {"step_count": 4}
        }
    }`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rr.Code, rr.Body.String())
	}

	req := httptest.NewRequest(http.MethodGet, "/health-data?subject_id=subject-1&startDate=2024-02-01&endDate=2024-02-07", nil)
	rr = httptest.NewRecorder()
	handler.healthData(rr, req)

	var resp QueryResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Data) != 2 {
		t.Fatalf("expected 2 records got %d", len(resp.Data))
	}
	if resp.Data[0].Date != "2024-02-01" || resp.Data[1].Date != "2024-02-07" {
		t.Fatalf("unexpected dates %s, %s", resp.Data[0].Date, resp.Data[1].Date)
	}
}

func TestAllHealthDataSpansSubjects(t *testing.T) {
	handler := newTestHandler()

	for _, body := range []string{
		`{"subject_id": "subject-a", "data": {"2024-02-01": {"step_count": 1}}}`,
		`{"subject_id": "subject-b", "data": {"2024-02-02": {"step_count": 2}}}`,
	} {
		if rr := postBody(t, handler, body); rr.Code != http.StatusOK {
			t.Fatalf("expected 200 got %d: %s", rr.Code, rr.Body.String())
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/health-data/all", nil)
	rr := httptest.NewRecorder()
	handler.allHealthData(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rr.Code, rr.Body.String())
	}
	var resp AllRecordsResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.AllSubjects) != 2 {
		t.Fatalf("expected 2 records got %d", len(resp.AllSubjects))
	}
	if resp.AllSubjects[0].SubjectID != "subject-a" || resp.AllSubjects[1].SubjectID != "subject-b" {
		t.Fatalf("expected subjects ordered, got %+v", resp.AllSubjects)
	}
}

func TestRecordViewOmitsRawSamples(t *testing.T) {
	handler := newTestHandler()

	rr := postBody(t, handler, `{"subject_id": "subject-1", "data": {"2024-02-01": {"heart_rate_samples": [60, 70]}}}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rr.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/health-data?subject_id=subject-1", nil)
	rr = httptest.NewRecorder()
	handler.healthData(rr, req)

	if strings.Contains(rr.Body.String(), "heart_rate_samples") {
		t.Fatalf("raw samples leaked into response: %s", rr.Body.String())
	}
}
