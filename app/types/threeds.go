package types

import (
	"bytes"
	"encoding/json"
	"errors"
)

// FlexString accepts a JSON string, number or boolean. Browser fingerprints and amounts arrive in all three forms.
type FlexString string

func (f *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}
	if bytes.Equal(data, []byte("true")) || bytes.Equal(data, []byte("false")) {
		*f = FlexString(data)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return errors.New("expected string, number or boolean")
	}
	*f = FlexString(n.String())
	return nil
}

type BrowserInfo struct {
	Language          string     `json:"language"`
	ScreenWidth       FlexString `json:"screenWidth"`
	ScreenHeight      FlexString `json:"screenHeight"`
	ColorDepth        FlexString `json:"colorDepth"`
	TimeZone          FlexString `json:"timeZone"`
	JavaScriptEnabled FlexString `json:"javaScriptEnabled"`
	UserAgent         string     `json:"userAgent"`
	AcceptHeader      string     `json:"acceptHeader"`
}

type InitiatePaymentRequest struct {
	CardNumber    string       `json:"cardNumber"`
	Expiration    string       `json:"expiration"`
	Cvc           string       `json:"cvc"`
	Amount        FlexString   `json:"amount"`
	Itbis         FlexString   `json:"itbis"`
	CustomOrderId string       `json:"customOrderId"`
	CustomerName  string       `json:"customerName"`
	CustomerPhone string       `json:"customerPhone"`
	BrowserInfo   *BrowserInfo `json:"browserInfo"`

	ClientIp     string `json:"-"`
	HeaderAccept string `json:"-"`
	HeaderAgent  string `json:"-"`
}

func (r *InitiatePaymentRequest) GetCardNumber() string    { return r.CardNumber }
func (r *InitiatePaymentRequest) GetExpiration() string    { return r.Expiration }
func (r *InitiatePaymentRequest) GetCvc() string           { return r.Cvc }
func (r *InitiatePaymentRequest) GetAmount() string        { return string(r.Amount) }
func (r *InitiatePaymentRequest) GetItbis() string         { return string(r.Itbis) }
func (r *InitiatePaymentRequest) GetCustomOrderId() string { return r.CustomOrderId }
func (r *InitiatePaymentRequest) GetCustomerName() string  { return r.CustomerName }
func (r *InitiatePaymentRequest) GetCustomerPhone() string { return r.CustomerPhone }
func (r *InitiatePaymentRequest) GetClientIp() string      { return r.ClientIp }

func (r *InitiatePaymentRequest) GetAcceptHeader() string {
	if r.BrowserInfo != nil && r.BrowserInfo.AcceptHeader != "" {
		return r.BrowserInfo.AcceptHeader
	}
	return r.HeaderAccept
}

func (r *InitiatePaymentRequest) GetUserAgent() string {
	if r.BrowserInfo != nil && r.BrowserInfo.UserAgent != "" {
		return r.BrowserInfo.UserAgent
	}
	return r.HeaderAgent
}

func (r *InitiatePaymentRequest) GetLanguage() string {
	if r.BrowserInfo == nil {
		return ""
	}
	return r.BrowserInfo.Language
}

func (r *InitiatePaymentRequest) GetScreenWidth() string {
	if r.BrowserInfo == nil {
		return ""
	}
	return string(r.BrowserInfo.ScreenWidth)
}

func (r *InitiatePaymentRequest) GetScreenHeight() string {
	if r.BrowserInfo == nil {
		return ""
	}
	return string(r.BrowserInfo.ScreenHeight)
}

func (r *InitiatePaymentRequest) GetColorDepth() string {
	if r.BrowserInfo == nil {
		return ""
	}
	return string(r.BrowserInfo.ColorDepth)
}

func (r *InitiatePaymentRequest) GetTimeZone() string {
	if r.BrowserInfo == nil {
		return ""
	}
	return string(r.BrowserInfo.TimeZone)
}

func (r *InitiatePaymentRequest) GetJavaScriptEnabled() string {
	if r.BrowserInfo == nil {
		return ""
	}
	return string(r.BrowserInfo.JavaScriptEnabled)
}

type ContinuePaymentRequest struct {
	SessionId   string `json:"sessionId"`
	AzulOrderId string `json:"azulOrderId"`
}

func (r *ContinuePaymentRequest) GetSessionId() string   { return r.SessionId }
func (r *ContinuePaymentRequest) GetAzulOrderId() string { return r.AzulOrderId }

type SessionQueryRequest struct {
	SessionId string
}

func (r *SessionQueryRequest) GetSessionId() string { return r.SessionId }

type ChallengeCallbackRequest struct {
	SessionId string
	CRes      string
}

func (r *ChallengeCallbackRequest) GetSessionId() string { return r.SessionId }
func (r *ChallengeCallbackRequest) GetCRes() string      { return r.CRes }

type ApprovedResponse struct {
	Success           bool   `json:"success"`
	Approved          bool   `json:"approved"`
	AuthorizationCode string `json:"authorizationCode"`
	AzulOrderId       string `json:"azulOrderId"`
	CustomOrderId     string `json:"customOrderId"`
	Message           string `json:"message"`
	Rrn               string `json:"rrn"`
	Ticket            string `json:"ticket"`
	SessionId         string `json:"sessionId"`
}

type MethodRequiredResponse struct {
	ThreeDSMethod bool   `json:"threeDSMethod"`
	SessionId     string `json:"sessionId"`
	AzulOrderId   string `json:"azulOrderId"`
	MethodForm    string `json:"methodForm"`
}

type ChallengeRequiredResponse struct {
	Approved          bool   `json:"approved"`
	ChallengeRequired bool   `json:"challengeRequired"`
	SessionId         string `json:"sessionId"`
	AzulOrderId       string `json:"azulOrderId"`
	RedirectUrl       string `json:"redirectUrl"`
	RedirectPostData  string `json:"redirectPostData"`
}

type GatewayErrorResponse struct {
	Success  bool   `json:"success"`
	Approved bool   `json:"approved"`
	Error    string `json:"error"`
	Message  string `json:"message"`
}

type DeclinedResponse struct {
	Success  bool   `json:"success"`
	Approved bool   `json:"approved"`
	IsoCode  string `json:"isoCode"`
	Message  string `json:"message"`
}

type FinalResponse struct {
	IsoCode      string `json:"isoCode"`
	Message      string `json:"message"`
	ResponseCode string `json:"responseCode"`
}

type SessionStatusResponse struct {
	Status         string         `json:"status"`
	MethodReceived bool           `json:"methodReceived"`
	FinalResponse  *FinalResponse `json:"finalResponse,omitempty"`
}

type SessionResponse struct {
	SessionId                  string          `json:"sessionId"`
	AzulOrderId                string          `json:"azulOrderId,omitempty"`
	CustomOrderId              string          `json:"customOrderId"`
	Status                     string          `json:"status"`
	MethodNotificationReceived bool            `json:"methodNotificationReceived"`
	GatewayResponse            json.RawMessage `json:"gatewayResponse,omitempty"`
	CreatedAt                  string          `json:"createdAt"`
	UpdatedAt                  string          `json:"updatedAt"`
}

type PurgeSessionsResponse struct {
	Deleted int64 `json:"deleted"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type HealthResponse struct {
	Status string `json:"status"`
}
