package payments

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestHandleWebhook_CheckoutEvent(t *testing.T) {
	processor, dbService, cleanup := setupProcessorTest(t)
	defer cleanup()

	body := `{
		"id": "evt_http_1",
		"type": "checkout.session.completed",
		"data": {"object": {
			"id": "cs_http",
			"metadata": {"userId": "user1", "credits": "500", "packageName": "Small Pack"}
		}}
	}`

	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", strings.NewReader(body))
	processor.HandleWebhook(recorder, request)

	if recorder.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", recorder.Code, recorder.Body.String())
	}
	if !strings.Contains(recorder.Body.String(), `"received":true`) {
		t.Errorf("Expected acknowledgement body, got %s", recorder.Body.String())
	}

	balance, err := dbService.GetBalance(context.Background(), "user1")
	if err != nil {
		t.Fatalf("GetBalance failed: %v", err)
	}
	if balance != 500 {
		t.Errorf("Expected balance 500, got %d", balance)
	}
}

func TestHandleWebhook_InvalidPayload(t *testing.T) {
	processor, _, cleanup := setupProcessorTest(t)
	defer cleanup()

	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", strings.NewReader("not json"))
	processor.HandleWebhook(recorder, request)

	if recorder.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for invalid payload, got %d", recorder.Code)
	}
}
