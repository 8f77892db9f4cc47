package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"currency-ledger/domain"
)

var outputJSON bool

func newEncoder(w io.Writer) *json.Encoder {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc
}

func printAccounts(w io.Writer, accounts []*domain.Account) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tOWNER\tCURRENCY\tBALANCE\tACTIVE")
	for _, acc := range accounts {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%t\n", acc.ID, acc.OwnerID, acc.Currency, acc.Balance.StringFixed(domain.Scale), acc.Active)
	}
	_ = tw.Flush()
}

func printTransactions(w io.Writer, transactions []*domain.Transaction) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCREATED\tTYPE\tVALUE\tFROM\tTO\tRELATED")
	for _, tr := range transactions {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			tr.ID,
			tr.Created.Format("2006-01-02 15:04:05"),
			tr.Type.Name(),
			tr.Value.StringFixed(domain.Scale),
			orDash(domain.Deref(tr.SourceID)),
			orDash(domain.Deref(tr.DestinationID)),
			orDash(domain.Deref(tr.RelatedID)))
	}
	_ = tw.Flush()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
