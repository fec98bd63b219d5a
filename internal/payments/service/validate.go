package service

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"

	"affinet/internal/payments/models"
	"affinet/pkg/domain"
	dErrors "affinet/pkg/domain-errors"
	"affinet/pkg/money"
	audit "affinet/pkg/platform/audit"
)

// Validate runs the pre-flight checks for a transaction request and returns
// a structured report. An invalid request is a successful validation call;
// only infrastructure failures surface as errors. Passing validation is no
// settlement guarantee: balances move between check and execution.
func (o *Orchestrator) Validate(ctx context.Context, req models.TransactionRequest) (*models.ValidationResult, error) {
	ctx, span := o.tracer.Start(ctx, "payments.Validate")
	defer span.End()

	result := &models.ValidationResult{Valid: true}

	if !req.Kind.Known() {
		result.Add("kind", string(dErrors.CodeValidation), "unknown transaction kind")
		return result, nil
	}
	if !req.Amount.IsPositive() {
		result.Add("amount", string(dErrors.CodeInvalidAmount), "amount must be positive")
	}

	switch req.Kind {
	case models.OpDeposit:
		if !o.ledger.SupportsCurrency(req.Currency) {
			result.Add("currency", string(dErrors.CodeUnsupportedCurrency), "no exchange rate for "+req.Currency)
		}
		if err := o.checkParticipant(ctx, result, "payee", req.Payee); err != nil {
			return nil, spanErr(span, err)
		}
	case models.OpWithdrawal:
		if err := o.checkParticipant(ctx, result, "payer", req.Payer); err != nil {
			return nil, spanErr(span, err)
		}
		if err := o.checkBalance(ctx, result, req.Payer, money.Round(req.Amount)); err != nil {
			return nil, spanErr(span, err)
		}
	case models.OpTransfer, models.OpPayment:
		if err := o.checkParticipant(ctx, result, "payer", req.Payer); err != nil {
			return nil, spanErr(span, err)
		}
		if err := o.checkParticipant(ctx, result, "payee", req.Payee); err != nil {
			return nil, spanErr(span, err)
		}
		if req.Payer == req.Payee {
			result.Add("payee", string(dErrors.CodeInvalidAmount), "payer and payee must differ")
		}
		if err := o.checkBalance(ctx, result, req.Payer, money.Round(req.Amount)); err != nil {
			return nil, spanErr(span, err)
		}
	case models.OpEscrow:
		if req.CorrelationID == "" {
			result.Add("correlation_id", string(dErrors.CodeValidation), "escrow requires a correlation id")
		}
		if err := o.checkParticipant(ctx, result, "payer", req.Payer); err != nil {
			return nil, spanErr(span, err)
		}
		if err := o.checkParticipant(ctx, result, "payee", req.Payee); err != nil {
			return nil, spanErr(span, err)
		}
		// Escrow debits gross plus fee up front.
		gross := money.Round(req.Amount)
		needed := gross.Add(money.ApplyRate(gross, o.ledger.Schedule().FeeRate))
		if err := o.checkBalance(ctx, result, req.Payer, needed); err != nil {
			return nil, spanErr(span, err)
		}
	}

	if !result.Valid {
		_ = o.auditor.Emit(ctx, auditValidationFailed(req, result))
	}
	return result, nil
}

func (o *Orchestrator) checkParticipant(ctx context.Context, result *models.ValidationResult, field string, uin domain.UIN) error {
	if uin.IsZero() {
		result.Add(field, string(dErrors.CodeValidation), field+" is required")
		return nil
	}
	if uin.IsSystem() {
		result.Add(field, string(dErrors.CodeValidation), field+" must not name the system account")
		return nil
	}
	identity, err := o.registry.Get(ctx, uin)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeNotFound) {
			result.Add(field, string(dErrors.CodeNotFound), "identity "+uin.String()+" does not exist")
			return nil
		}
		return err
	}
	if !identity.Active {
		result.Add(field, string(dErrors.CodeInactiveAccount), "identity "+uin.String()+" is deactivated")
	}
	return nil
}

func (o *Orchestrator) checkBalance(ctx context.Context, result *models.ValidationResult, payer domain.UIN, needed decimal.Decimal) error {
	if payer.IsZero() || payer.IsSystem() {
		return nil
	}
	purse, err := o.ledger.PurseOf(ctx, payer)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeNotFound) {
			result.Add("payer", string(dErrors.CodeNotFound), "no purse for "+payer.String())
			return nil
		}
		return err
	}
	if purse.Balance.LessThan(needed) {
		result.Add("amount", string(dErrors.CodeInsufficientBalance),
			"purse "+payer.String()+" holds "+purse.Balance.String()+", needs "+needed.String())
	}
	return nil
}

func auditValidationFailed(req models.TransactionRequest, result *models.ValidationResult) audit.Event {
	codes := make([]string, 0, len(result.Failures))
	for _, f := range result.Failures {
		codes = append(codes, f.Code)
	}
	return audit.Event{
		Actor:   req.Payer,
		Subject: string(req.Kind),
		Action:  string(audit.EventValidationFailed),
		Amount:  req.Amount.String(),
		Reason:  strings.Join(codes, ","),
	}
}
