package gateway

import "encoding/json"

const (
	ChannelECommerce   = "EC"
	PosInputECommerce  = "E-Commerce"
	TrxTypeSale        = "Sale"
	CurrencyPosCodeDOP = "$"

	MethodNotificationReceived            = "RECEIVED"
	MethodNotificationExpectedNotReceived = "EXPECTED_BUT_NOT_RECEIVED"

	ChallengeIndicatorNoPreference = "03"
)

type ThreeDSAuth struct {
	TermURL                   string `json:"TermUrl"`
	MethodNotificationURL     string `json:"MethodNotificationUrl"`
	RequestChallengeIndicator string `json:"RequestChallengeIndicator"`
}

type CardHolderInfo struct {
	Name        string `json:"Name"`
	PhoneMobile string `json:"PhoneMobile"`
}

type BrowserInfo struct {
	AcceptHeader      string `json:"AcceptHeader"`
	IPAddress         string `json:"IPAddress"`
	Language          string `json:"Language"`
	ColorDepth        string `json:"ColorDepth"`
	ScreenWidth       string `json:"ScreenWidth"`
	ScreenHeight      string `json:"ScreenHeight"`
	TimeZone          string `json:"TimeZone"`
	UserAgent         string `json:"UserAgent"`
	JavaScriptEnabled string `json:"JavaScriptEnabled"`
}

// SaleRequest is the initial 3DS-aware sale. Channel and Store are filled by the client.
type SaleRequest struct {
	Channel              string         `json:"Channel"`
	Store                string         `json:"Store"`
	CardNumber           string         `json:"CardNumber"`
	Expiration           string         `json:"Expiration"`
	CVC                  string         `json:"CVC"`
	PosInputMode         string         `json:"PosInputMode"`
	TrxType              string         `json:"TrxType"`
	Amount               string         `json:"Amount"`
	Itbis                string         `json:"Itbis"`
	CurrencyPosCode      string         `json:"CurrencyPosCode"`
	Payments             string         `json:"Payments"`
	Plan                 string         `json:"Plan"`
	AcquirerRefData      string         `json:"AcquirerRefData"`
	RRN                  *string        `json:"RRN"`
	CustomerServicePhone string         `json:"CustomerServicePhone"`
	OrderNumber          string         `json:"OrderNumber"`
	ECommerceURL         string         `json:"ECommerceUrl"`
	CustomOrderID        string         `json:"CustomOrderId"`
	DataVaultToken       string         `json:"DataVaultToken"`
	SaveToDataVault      string         `json:"SaveToDataVault"`
	ForceNo3DS           string         `json:"ForceNo3DS"`
	AltMerchantName      string         `json:"AltMerchantName"`
	ThreeDSAuth          ThreeDSAuth    `json:"ThreeDSAuth"`
	CardHolderInfo       CardHolderInfo `json:"CardHolderInfo"`
	BrowserInfo          BrowserInfo    `json:"BrowserInfo"`
}

type MethodRequest struct {
	Channel                  string `json:"Channel"`
	Store                    string `json:"Store"`
	AzulOrderID              string `json:"AzulOrderId"`
	MethodNotificationStatus string `json:"MethodNotificationStatus"`
}

type ChallengeRequest struct {
	Channel     string `json:"Channel"`
	Store       string `json:"Store"`
	AzulOrderID string `json:"AzulOrderId"`
	CRes        string `json:"CRes"`
}

type ThreeDSMethod struct {
	MethodForm string `json:"MethodForm"`
}

type ThreeDSChallenge struct {
	RedirectPostURL string `json:"RedirectPostUrl"`
	CReq            string `json:"CReq"`
}

// Response holds the fields the payment flow reads. Raw keeps the body exactly as received.
type Response struct {
	ResponseCode      string            `json:"ResponseCode"`
	IsoCode           string            `json:"IsoCode"`
	ResponseMessage   string            `json:"ResponseMessage"`
	ErrorDescription  string            `json:"ErrorDescription"`
	AuthorizationCode string            `json:"AuthorizationCode"`
	AzulOrderID       string            `json:"AzulOrderId"`
	CustomOrderID     string            `json:"CustomOrderId"`
	RRN               string            `json:"RRN"`
	Ticket            string            `json:"Ticket"`
	RedirectURL       string            `json:"RedirectUrl"`
	RedirectPostData  string            `json:"RedirectPostData"`
	ThreeDSMethod     *ThreeDSMethod    `json:"ThreeDSMethod"`
	ThreeDSChallenge  *ThreeDSChallenge `json:"ThreeDSChallenge"`

	Raw json.RawMessage `json:"-"`
}
