package paypalexpress

import "encoding/xml"

// Wire types for the Express Checkout SOAP API. Request elements carry the
// SOAP-ENV and urn prefixes PayPal expects; responses are decoded by local
// name so namespace prefixes in the reply do not matter.

const (
	soapEnvNS = "http://schemas.xmlsoap.org/soap/envelope/"
	paypalURN = "urn:ebay:api:PayPalAPI"
)

type requestEnvelope struct {
	XMLName xml.Name `xml:"SOAP-ENV:Envelope"`
	EnvNS   string   `xml:"xmlns:SOAP-ENV,attr"`
	URN     string   `xml:"xmlns:urn,attr"`
	Header  requestHeader
	Body    requestBody
}

type requestHeader struct {
	XMLName     xml.Name `xml:"SOAP-ENV:Header"`
	Credentials requesterCredentials
}

type requesterCredentials struct {
	XMLName     xml.Name    `xml:"urn:RequesterCredentials"`
	Credentials credentials `xml:"urn:Credentials"`
}

type credentials struct {
	Username  string `xml:"urn:Username"`
	Password  string `xml:"urn:Password"`
	Signature string `xml:"urn:Signature"`
}

type requestBody struct {
	XMLName xml.Name `xml:"SOAP-ENV:Body"`
	Payload any
}

type amount struct {
	CurrencyID string `xml:"currencyID,attr"`
	Value      string `xml:",chardata"`
}

type setExpressCheckoutReq struct {
	XMLName xml.Name                  `xml:"urn:SetExpressCheckoutReq"`
	Request setExpressCheckoutRequest `xml:"urn:SetExpressCheckoutRequest"`
}

type setExpressCheckoutRequest struct {
	Version string                    `xml:"urn:Version"`
	Details setExpressCheckoutDetails `xml:"urn:SetExpressCheckoutRequestDetails"`
}

type setExpressCheckoutDetails struct {
	OrderTotal amount `xml:"urn:OrderTotal"`
	ReturnURL  string `xml:"urn:ReturnURL"`
	CancelURL  string `xml:"urn:CancelURL"`
	InvoiceID  string `xml:"urn:InvoiceID"`
}

type getExpressCheckoutDetailsReq struct {
	XMLName xml.Name                         `xml:"urn:GetExpressCheckoutDetailsReq"`
	Request getExpressCheckoutDetailsRequest `xml:"urn:GetExpressCheckoutDetailsRequest"`
}

type getExpressCheckoutDetailsRequest struct {
	Version string `xml:"urn:Version"`
	Token   string `xml:"urn:Token"`
}

type doExpressCheckoutPaymentReq struct {
	XMLName xml.Name                        `xml:"urn:DoExpressCheckoutPaymentReq"`
	Request doExpressCheckoutPaymentRequest `xml:"urn:DoExpressCheckoutPaymentRequest"`
}

type doExpressCheckoutPaymentRequest struct {
	Version string                          `xml:"urn:Version"`
	Details doExpressCheckoutPaymentDetails `xml:"urn:DoExpressCheckoutPaymentRequestDetails"`
}

type doExpressCheckoutPaymentDetails struct {
	Token         string `xml:"urn:Token"`
	PayerID       string `xml:"urn:PayerID"`
	PaymentAction string `xml:"urn:PaymentAction"`
	OrderTotal    amount `xml:"urn:PaymentDetails>urn:OrderTotal"`
	InvoiceID     string `xml:"urn:PaymentDetails>urn:InvoiceID"`
}

type doCaptureReq struct {
	XMLName xml.Name         `xml:"urn:DoCaptureReq"`
	Request doCaptureRequest `xml:"urn:DoCaptureRequest"`
}

type doCaptureRequest struct {
	Version         string `xml:"urn:Version"`
	AuthorizationID string `xml:"urn:AuthorizationID"`
	Amount          amount `xml:"urn:Amount"`
	CompleteType    string `xml:"urn:CompleteType"`
}

type refundTransactionReq struct {
	XMLName xml.Name                 `xml:"urn:RefundTransactionReq"`
	Request refundTransactionRequest `xml:"urn:RefundTransactionRequest"`
}

type refundTransactionRequest struct {
	Version       string  `xml:"urn:Version"`
	TransactionID string  `xml:"urn:TransactionID"`
	RefundType    string  `xml:"urn:RefundType"`
	Amount        *amount `xml:"urn:Amount,omitempty"`
}

type apiError struct {
	ErrorCode    string `xml:"ErrorCode"`
	ShortMessage string `xml:"ShortMessage"`
	LongMessage  string `xml:"LongMessage"`
	SeverityCode string `xml:"SeverityCode"`
}

type paymentInfo struct {
	TransactionID string `xml:"TransactionID"`
	PaymentStatus string `xml:"PaymentStatus"`
	GrossAmount   struct {
		CurrencyID string `xml:"currencyID,attr"`
		Value      string `xml:",chardata"`
	} `xml:"GrossAmount"`
}

type payerInfo struct {
	Payer   string `xml:"Payer"`
	PayerID string `xml:"PayerID"`
}

type setExpressCheckoutResponse struct {
	Ack           string     `xml:"Ack"`
	CorrelationID string     `xml:"CorrelationID"`
	Token         string     `xml:"Token"`
	Errors        []apiError `xml:"Errors"`
}

type getExpressCheckoutDetailsResponse struct {
	Ack           string     `xml:"Ack"`
	CorrelationID string     `xml:"CorrelationID"`
	Errors        []apiError `xml:"Errors"`
	Details       struct {
		Token     string    `xml:"Token"`
		PayerInfo payerInfo `xml:"PayerInfo"`
	} `xml:"GetExpressCheckoutDetailsResponseDetails"`
}

type doExpressCheckoutPaymentResponse struct {
	Ack           string     `xml:"Ack"`
	CorrelationID string     `xml:"CorrelationID"`
	Errors        []apiError `xml:"Errors"`
	PaymentInfo   paymentInfo `xml:"DoExpressCheckoutPaymentResponseDetails>PaymentInfo"`
}

type doCaptureResponse struct {
	Ack                      string     `xml:"Ack"`
	CorrelationID            string     `xml:"CorrelationID"`
	Errors                   []apiError `xml:"Errors"`
	DoCaptureResponseDetails struct {
		PaymentInfo paymentInfo `xml:"PaymentInfo"`
	} `xml:"DoCaptureResponseDetails"`
}

type refundTransactionResponse struct {
	Ack                 string     `xml:"Ack"`
	CorrelationID       string     `xml:"CorrelationID"`
	Errors              []apiError `xml:"Errors"`
	RefundTransactionID string     `xml:"RefundTransactionID"`
}

type responseEnvelope struct {
	XMLName xml.Name `xml:"Envelope"`
	Body    struct {
		SetExpressCheckout        *setExpressCheckoutResponse        `xml:"SetExpressCheckoutResponse"`
		GetExpressCheckoutDetails *getExpressCheckoutDetailsResponse `xml:"GetExpressCheckoutDetailsResponse"`
		DoExpressCheckoutPayment  *doExpressCheckoutPaymentResponse  `xml:"DoExpressCheckoutPaymentResponse"`
		DoCapture                 *doCaptureResponse                 `xml:"DoCaptureResponse"`
		RefundTransaction         *refundTransactionResponse         `xml:"RefundTransactionResponse"`
	} `xml:"Body"`
}
