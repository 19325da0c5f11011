package controller

import (
	"net/http"
	"strconv"

	"github.com/commercekit/paygate/internal/application/checkout"
	"github.com/commercekit/paygate/internal/domain/money"
	"github.com/commercekit/paygate/internal/domain/transaction"
	"github.com/commercekit/paygate/internal/gateway"
	"github.com/go-chi/chi/v5"
)

// PaymentController handles the payment lifecycle HTTP endpoints for an order.
type PaymentController struct {
	initialize *checkout.InitializePaymentUseCase
	authorize  *checkout.AuthorizePaymentUseCase
	charge     *checkout.ChargePaymentUseCase
	capture    *checkout.CapturePaymentUseCase
	refund     *checkout.RefundPaymentUseCase
	list       *checkout.ListTransactionsUseCase
}

// NewPaymentController creates a new PaymentController.
func NewPaymentController(
	initialize *checkout.InitializePaymentUseCase,
	authorize *checkout.AuthorizePaymentUseCase,
	charge *checkout.ChargePaymentUseCase,
	capture *checkout.CapturePaymentUseCase,
	refund *checkout.RefundPaymentUseCase,
	list *checkout.ListTransactionsUseCase,
) *PaymentController {
	return &PaymentController{
		initialize: initialize,
		authorize:  authorize,
		charge:     charge,
		capture:    capture,
		refund:     refund,
		list:       list,
	}
}

// InitializePayment handles POST /api/v1/orders/{orderID}/payment/initialize
func (h *PaymentController) InitializePayment(w http.ResponseWriter, r *http.Request) {
	var req InitializePaymentRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, err)
		return
	}

	kind, err := gateway.ParseProviderKind(req.Provider)
	if err != nil {
		writeError(w, err)
		return
	}
	amount, err := parseAmount(req.Amount, req.Currency)
	if err != nil {
		writeError(w, err)
		return
	}

	tx, err := h.initialize.Execute(r.Context(), checkout.InitializePaymentRequest{
		OrderID:   chi.URLParam(r, "orderID"),
		Provider:  kind,
		Amount:    amount,
		Method:    transaction.PaymentMethod(req.Method),
		ReturnURL: req.ReturnURL,
		CancelURL: req.CancelURL,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, FromTransaction(tx))
}

// AuthorizePayment handles POST /api/v1/orders/{orderID}/payment/authorize
func (h *PaymentController) AuthorizePayment(w http.ResponseWriter, r *http.Request) {
	appReq, err := decodePaymentStep(r)
	if err != nil {
		writeError(w, err)
		return
	}

	tx, err := h.authorize.Execute(r.Context(), appReq)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, FromTransaction(tx))
}

// ChargePayment handles POST /api/v1/orders/{orderID}/payment/charge
func (h *PaymentController) ChargePayment(w http.ResponseWriter, r *http.Request) {
	appReq, err := decodePaymentStep(r)
	if err != nil {
		writeError(w, err)
		return
	}

	tx, err := h.charge.Execute(r.Context(), appReq)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, FromTransaction(tx))
}

// CapturePayment handles POST /api/v1/orders/{orderID}/payment/capture
func (h *PaymentController) CapturePayment(w http.ResponseWriter, r *http.Request) {
	var req CapturePaymentRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, err)
		return
	}

	kind, err := gateway.ParseProviderKind(req.Provider)
	if err != nil {
		writeError(w, err)
		return
	}

	var amount money.Money
	if req.Amount != "" {
		amount, err = parseAmount(req.Amount, req.Currency)
		if err != nil {
			writeError(w, err)
			return
		}
	}

	tx, err := h.capture.Execute(r.Context(), checkout.CapturePaymentRequest{
		OrderID:  chi.URLParam(r, "orderID"),
		Provider: kind,
		Amount:   amount,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, FromTransaction(tx))
}

// RefundPayment handles POST /api/v1/orders/{orderID}/payment/refund
func (h *PaymentController) RefundPayment(w http.ResponseWriter, r *http.Request) {
	var req RefundPaymentRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, err)
		return
	}

	kind, err := gateway.ParseProviderKind(req.Provider)
	if err != nil {
		writeError(w, err)
		return
	}

	var amount money.Money
	if req.Amount != "" {
		amount, err = parseAmount(req.Amount, req.Currency)
		if err != nil {
			writeError(w, err)
			return
		}
	}

	tx, err := h.refund.Execute(r.Context(), checkout.RefundPaymentRequest{
		OrderID:  chi.URLParam(r, "orderID"),
		Provider: kind,
		Partial:  req.Partial,
		Amount:   amount,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, FromTransaction(tx))
}

// ListTransactions handles GET /api/v1/orders/{orderID}/transactions
func (h *PaymentController) ListTransactions(w http.ResponseWriter, r *http.Request) {
	filter := transaction.ListFilter{OrderID: chi.URLParam(r, "orderID")}

	if s := r.URL.Query().Get("provider"); s != "" {
		filter.Provider = &s
	}
	if s := r.URL.Query().Get("type"); s != "" {
		typ := transaction.Type(s)
		filter.Type = &typ
	}
	filter.Limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	filter.Offset, _ = strconv.Atoi(r.URL.Query().Get("offset"))

	transactions, err := h.list.Execute(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := make([]*TransactionResponse, 0, len(transactions))
	for _, t := range transactions {
		resp = append(resp, FromTransaction(t))
	}
	writeJSON(w, http.StatusOK, resp)
}

// decodePaymentStep handles the shared request shape of authorize and charge.
func decodePaymentStep(r *http.Request) (checkout.AuthorizePaymentRequest, error) {
	var req AuthorizePaymentRequest
	if err := decodeAndValidate(r, &req); err != nil {
		return checkout.AuthorizePaymentRequest{}, err
	}

	kind, err := gateway.ParseProviderKind(req.Provider)
	if err != nil {
		return checkout.AuthorizePaymentRequest{}, err
	}
	amount, err := parseAmount(req.Amount, req.Currency)
	if err != nil {
		return checkout.AuthorizePaymentRequest{}, err
	}

	return checkout.AuthorizePaymentRequest{
		OrderID:  chi.URLParam(r, "orderID"),
		Provider: kind,
		Amount:   amount,
		Method:   transaction.PaymentMethod(req.Method),
		Instrument: gateway.Instrument{
			Nonce:   req.Instrument.Nonce,
			Token:   req.Instrument.Token,
			PayerID: req.Instrument.PayerID,
		},
	}, nil
}
