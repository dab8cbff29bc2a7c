package httpapi

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/Proton-105/himera-wallet/internal/domain"
)

type bootstrapRequest struct {
	Email  string `json:"email" validate:"omitempty,email,max=254"`
	Name   string `json:"name" validate:"max=128"`
	ChatID int64  `json:"chat_id" validate:"gte=0"`
}

func (a *api) bootstrap(w http.ResponseWriter, r *http.Request) {
	var req bootstrapRequest
	if err := a.decode(w, r, &req); err != nil {
		a.fail(w, r, err)
		return
	}

	out, err := a.svc.Users.GetOrCreate(r.Context(), domain.User{
		UserID: userID(r),
		Email:  req.Email,
		Name:   req.Name,
		ChatID: req.ChatID,
	})
	if err != nil {
		a.fail(w, r, err)
		return
	}

	status := http.StatusOK
	if out.Created {
		status = http.StatusCreated
	}
	writeStatus(w, status, out)
}

func (a *api) getWallet(w http.ResponseWriter, r *http.Request) {
	wallet, err := a.svc.Wallet.Get(r.Context(), userID(r))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.ok(w, wallet)
}

func (a *api) transactions(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 20)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		a.fail(w, r, err)
		return
	}

	txType := domain.TransactionType(r.URL.Query().Get("transaction_type"))
	page, err := a.svc.Wallet.Transactions(r.Context(), userID(r), txType, limit, offset)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.ok(w, page)
}

type amountRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

func (a *api) deposit(w http.ResponseWriter, r *http.Request) {
	var req amountRequest
	if err := a.decode(w, r, &req); err != nil {
		a.fail(w, r, err)
		return
	}

	out, err := a.svc.Wallet.Deposit(r.Context(), userID(r), req.Amount)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.ok(w, out)
}

func (a *api) withdraw(w http.ResponseWriter, r *http.Request) {
	var req amountRequest
	if err := a.decode(w, r, &req); err != nil {
		a.fail(w, r, err)
		return
	}

	out, err := a.svc.Wallet.WithdrawInternal(r.Context(), userID(r), req.Amount)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.ok(w, out)
}

type transferRequest struct {
	Amount      decimal.Decimal `json:"amount"`
	FromBalance string          `json:"from_balance" validate:"required"`
	ToBalance   string          `json:"to_balance" validate:"required"`
}

func (a *api) transfer(w http.ResponseWriter, r *http.Request) {
	var req transferRequest
	if err := a.decode(w, r, &req); err != nil {
		a.fail(w, r, err)
		return
	}

	out, err := a.svc.Wallet.Transfer(r.Context(), userID(r), req.Amount, req.FromBalance, req.ToBalance)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.ok(w, out)
}
