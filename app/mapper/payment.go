package mapper

import (
	"encoding/json"
	"time"

	"github.com/vibast-solutions/ms-go-azul-payments/app/entity"
	"github.com/vibast-solutions/ms-go-azul-payments/app/gateway"
	"github.com/vibast-solutions/ms-go-azul-payments/app/service"
	"github.com/vibast-solutions/ms-go-azul-payments/app/types"
)

const systemErrorMessage = "Error del sistema"

// FlowResultToResponse picks the response shape the payment client expects for each outcome.
func FlowResultToResponse(result *service.FlowResult) interface{} {
	if result == nil {
		return nil
	}

	switch outcome := result.Outcome.(type) {
	case service.Approved:
		return &types.ApprovedResponse{
			Success:           true,
			Approved:          true,
			AuthorizationCode: outcome.AuthorizationCode,
			AzulOrderId:       firstNonEmpty(outcome.AzulOrderID, result.AzulOrderID),
			CustomOrderId:     outcome.CustomOrderID,
			Message:           outcome.Message,
			Rrn:               outcome.RRN,
			Ticket:            outcome.Ticket,
			SessionId:         result.SessionID,
		}
	case service.MethodRequired:
		return &types.MethodRequiredResponse{
			ThreeDSMethod: true,
			SessionId:     result.SessionID,
			AzulOrderId:   firstNonEmpty(outcome.AzulOrderID, result.AzulOrderID),
			MethodForm:    outcome.MethodForm,
		}
	case service.ChallengeRequired:
		return &types.ChallengeRequiredResponse{
			Approved:          false,
			ChallengeRequired: true,
			SessionId:         result.SessionID,
			AzulOrderId:       firstNonEmpty(outcome.AzulOrderID, result.AzulOrderID),
			RedirectUrl:       outcome.RedirectURL,
			RedirectPostData:  outcome.RedirectPostData,
		}
	case service.GatewayError:
		return &types.GatewayErrorResponse{
			Success:  false,
			Approved: false,
			Error:    outcome.Description,
			Message:  systemErrorMessage,
		}
	case service.Declined:
		return &types.DeclinedResponse{
			Success:  false,
			Approved: false,
			IsoCode:  outcome.IsoCode,
			Message:  outcome.Message,
		}
	default:
		return &types.GatewayErrorResponse{Message: systemErrorMessage}
	}
}

// SessionToStatusResponse exposes only the decision fields of the final gateway response.
func SessionToStatusResponse(item *entity.Session) *types.SessionStatusResponse {
	if item == nil {
		return nil
	}

	resp := &types.SessionStatusResponse{
		Status:         string(item.Status),
		MethodReceived: item.MethodNotificationReceived,
	}
	if !item.Status.Terminal() || len(item.GatewayResponse) == 0 {
		return resp
	}

	var decoded gateway.Response
	if err := json.Unmarshal(item.GatewayResponse, &decoded); err != nil {
		return resp
	}
	resp.FinalResponse = &types.FinalResponse{
		IsoCode:      decoded.IsoCode,
		Message:      decoded.ResponseMessage,
		ResponseCode: decoded.ResponseCode,
	}
	return resp
}

func SessionToResponse(item *entity.Session) *types.SessionResponse {
	if item == nil {
		return nil
	}

	return &types.SessionResponse{
		SessionId:                  item.SessionID,
		AzulOrderId:                derefString(item.AzulOrderID),
		CustomOrderId:              item.CustomOrderID,
		Status:                     string(item.Status),
		MethodNotificationReceived: item.MethodNotificationReceived,
		GatewayResponse:            cloneRaw(item.GatewayResponse),
		CreatedAt:                  item.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:                  item.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func derefString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func cloneRaw(src json.RawMessage) json.RawMessage {
	if len(src) == 0 {
		return nil
	}
	return append(json.RawMessage(nil), src...)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
