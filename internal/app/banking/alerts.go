package banking

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/keneth217/bank/internal/domain"
)

const (
	subjectCredit          = "CREDIT ALERT"
	subjectDebit           = "DEBIT ALERT"
	subjectAccountCreation = "ACCOUNT CREATION"
)

func creditAlert(account *domain.Account, amount decimal.Decimal, from string) domain.Notification {
	body := fmt.Sprintf("The sum of %s has been credited to your account %s. Your current balance is %s.",
		domain.FormatMoney(amount), account.AccountNumber, domain.FormatMoney(account.Balance))
	if from != "" {
		body = fmt.Sprintf("The sum of %s has been sent to your account %s from %s. Your current balance is %s.",
			domain.FormatMoney(amount), account.AccountNumber, from, domain.FormatMoney(account.Balance))
	}
	return domain.Notification{Recipient: account.Email, Subject: subjectCredit, Body: body}
}

func debitAlert(account *domain.Account, amount decimal.Decimal, to string) domain.Notification {
	body := fmt.Sprintf("The sum of %s has been deducted from your account %s. Your current balance is %s.",
		domain.FormatMoney(amount), account.AccountNumber, domain.FormatMoney(account.Balance))
	if to != "" {
		body = fmt.Sprintf("The sum of %s has been transferred from your account %s to %s. Your current balance is %s.",
			domain.FormatMoney(amount), account.AccountNumber, to, domain.FormatMoney(account.Balance))
	}
	return domain.Notification{Recipient: account.Email, Subject: subjectDebit, Body: body}
}

func accountCreationAlert(account *domain.Account) domain.Notification {
	body := fmt.Sprintf("Congratulations! Your account has been successfully created.\nAccount Name: %s\nAccount Number: %s",
		account.OwnerName, account.AccountNumber)
	return domain.Notification{Recipient: account.Email, Subject: subjectAccountCreation, Body: body}
}
