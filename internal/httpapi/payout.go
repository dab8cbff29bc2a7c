package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/Proton-105/himera-wallet/internal/domain"
	"github.com/Proton-105/himera-wallet/internal/payout"
)

func (a *api) withdrawalConfig(w http.ResponseWriter, r *http.Request) {
	out, err := a.svc.Payout.Config(r.Context(), userID(r))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.ok(w, out)
}

type savePaymentMethodRequest struct {
	MethodType  string              `json:"method_type" validate:"required"`
	BankDetails *domain.BankDetails `json:"bank_details" validate:"-"`
	UPIDetails  *domain.UPIDetails  `json:"upi_details" validate:"-"`
	IsDefault   bool                `json:"is_default"`
}

func (a *api) savePaymentMethod(w http.ResponseWriter, r *http.Request) {
	var req savePaymentMethodRequest
	if err := a.decode(w, r, &req); err != nil {
		a.fail(w, r, err)
		return
	}

	method, err := a.svc.Payout.SavePaymentMethod(r.Context(), userID(r), payout.PaymentMethodInput{
		MethodType: domain.PaymentMethodType(req.MethodType),
		Bank:       req.BankDetails,
		UPI:        req.UPIDetails,
		IsDefault:  req.IsDefault,
	})
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeStatus(w, http.StatusCreated, method)
}

type withdrawalRequest struct {
	Amount          decimal.Decimal `json:"amount"`
	PaymentMethodID string          `json:"payment_method_id" validate:"required,max=64"`
}

func (a *api) requestWithdrawal(w http.ResponseWriter, r *http.Request) {
	var req withdrawalRequest
	if err := a.decode(w, r, &req); err != nil {
		a.fail(w, r, err)
		return
	}

	out, err := a.svc.Payout.RequestWithdrawal(r.Context(), userID(r), req.Amount, req.PaymentMethodID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeStatus(w, http.StatusCreated, out)
}

type withdrawalsResponse struct {
	Withdrawals []domain.Withdrawal `json:"withdrawals"`
}

func (a *api) withdrawalHistory(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 50)
	if err != nil {
		a.fail(w, r, err)
		return
	}

	items, err := a.svc.Payout.History(r.Context(), userID(r), limit)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.ok(w, withdrawalsResponse{Withdrawals: nonNil(items)})
}

func (a *api) verifyFace(w http.ResponseWriter, r *http.Request) {
	out, err := a.svc.Payout.VerifyFace(r.Context(), userID(r), chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.ok(w, out)
}

func (a *api) cancelWithdrawal(w http.ResponseWriter, r *http.Request) {
	out, err := a.svc.Payout.Cancel(r.Context(), userID(r), chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.ok(w, out)
}
