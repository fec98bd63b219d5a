package httptransport

import (
	"github.com/shopspring/decimal"

	identitymodels "affinet/internal/identity/models"
	paymentmodels "affinet/internal/payments/models"
	"affinet/pkg/domain"
	dErrors "affinet/pkg/domain-errors"
)

// OnboardRequest is the wire shape of POST /onboard.
type OnboardRequest struct {
	Email       string `json:"email"`
	Phone       string `json:"phone"`
	DisplayName string `json:"display_name"`
	Role        string `json:"role"`
	Upline      string `json:"upline,omitempty"`
	Currency    string `json:"currency"`
}

func (r OnboardRequest) contact() identitymodels.Contact {
	return identitymodels.Contact{
		Email:       r.Email,
		Phone:       r.Phone,
		DisplayName: r.DisplayName,
	}
}

func (r OnboardRequest) upline() (domain.UIN, error) {
	if r.Upline == "" {
		return domain.UIN(""), nil
	}
	uin, err := domain.ParseUIN(r.Upline)
	if err != nil {
		return domain.UIN(""), dErrors.New(dErrors.CodeValidation, "malformed upline: "+r.Upline)
	}
	return uin, nil
}

// TransactionRequest is the wire shape of POST /transactions and
// POST /transactions/validate. Amount travels as a string so clients never
// round through floats.
type TransactionRequest struct {
	Kind          string `json:"kind"`
	Payer         string `json:"payer,omitempty"`
	Payee         string `json:"payee,omitempty"`
	Amount        string `json:"amount"`
	Currency      string `json:"currency,omitempty"`
	CorrelationID string `json:"correlation_id,omitempty"`
	Description   string `json:"description,omitempty"`
}

func (r TransactionRequest) toModel() (paymentmodels.TransactionRequest, error) {
	var out paymentmodels.TransactionRequest

	amount, err := decimal.NewFromString(r.Amount)
	if err != nil {
		return out, dErrors.New(dErrors.CodeInvalidAmount, "amount is not a decimal number: "+r.Amount)
	}

	payer, err := parseOptionalUIN(r.Payer, "payer")
	if err != nil {
		return out, err
	}
	payee, err := parseOptionalUIN(r.Payee, "payee")
	if err != nil {
		return out, err
	}

	var correlationID domain.CorrelationID
	if r.CorrelationID != "" {
		correlationID, err = domain.ParseCorrelationID(r.CorrelationID)
		if err != nil {
			return out, dErrors.New(dErrors.CodeValidation, "malformed correlation id")
		}
	}

	out = paymentmodels.TransactionRequest{
		Kind:          paymentmodels.OpKind(r.Kind),
		Payer:         payer,
		Payee:         payee,
		Amount:        amount,
		Currency:      r.Currency,
		CorrelationID: correlationID,
		Description:   r.Description,
	}
	return out, nil
}

func parseOptionalUIN(raw, field string) (domain.UIN, error) {
	if raw == "" {
		return domain.UIN(""), nil
	}
	if raw == domain.SystemUIN.String() {
		// The system counterparty is ledger-internal; deposits and
		// withdrawals imply it, callers never name it.
		return domain.UIN(""), dErrors.New(dErrors.CodeValidation, field+" must not name the system account")
	}
	uin, err := domain.ParseUIN(raw)
	if err != nil {
		return domain.UIN(""), dErrors.New(dErrors.CodeValidation, "malformed "+field+": "+raw)
	}
	return uin, nil
}
