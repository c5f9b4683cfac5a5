package api

import (
	"time"

	"github.com/davidahmann/checkout/internal/checkout"
	"github.com/davidahmann/checkout/internal/gateway"
	"github.com/davidahmann/checkout/internal/tax"
	"github.com/davidahmann/checkout/pkg/types"
)

func fromAddress(a *types.Address) *gateway.Address {
	if a == nil {
		return nil
	}
	return &gateway.Address{
		Name:        a.Name,
		Line1:       a.Line1,
		Line2:       a.Line2,
		City:        a.City,
		Region:      a.Region,
		PostalCode:  a.PostalCode,
		CountryCode: a.CountryCode,
	}
}

func toLinks(links []gateway.Link) []types.Link {
	if len(links) == 0 {
		return nil
	}
	out := make([]types.Link, 0, len(links))
	for _, l := range links {
		out = append(out, types.Link{Href: l.Href, Rel: l.Rel, Method: l.Method})
	}
	return out
}

func toOrder(i checkout.Intent) types.Order {
	o := types.Order{
		ID:           i.ID,
		Processor:    i.Processor,
		Status:       string(i.Status),
		RemoteStatus: i.RemoteStatus,
		ProductRef:   i.ProductRef,
		Amounts: types.Amounts{
			Currency: i.Currency,
			Subtotal: tax.Format(i.Subtotal),
			Tax:      tax.Format(i.Tax),
			Total:    tax.Format(i.Total),
		},
		Region:      i.Region,
		ApprovalURL: i.ApprovalURL(),
		Links:       toLinks(i.Links),
		Action:      i.Action,
	}
	if !i.CreatedAt.IsZero() {
		o.CreatedAt = i.CreatedAt.UTC().Format(time.RFC3339)
	}
	if i.Settlement != nil {
		s := toSettlement(*i.Settlement)
		o.Settlement = &s
	}
	return o
}

func toSettlement(s gateway.Settlement) types.Settlement {
	out := types.Settlement{
		ID:           s.ID,
		Status:       string(s.Status),
		RemoteStatus: s.RawStatus,
		VaultID:      s.VaultID,
	}
	if s.Payer != (gateway.Payer{}) {
		out.Payer = &types.Payer{ID: s.Payer.ID, Email: s.Payer.Email, Name: s.Payer.Name}
	}
	for _, c := range s.Captures {
		out.Captures = append(out.Captures, types.Capture{
			ID:           c.ID,
			Status:       c.Status,
			Amount:       tax.Format(c.Amount.Value),
			Currency:     c.Amount.Currency,
			FinalCapture: c.FinalCapture,
		})
	}
	return out
}

func toSetupToken(st gateway.SetupToken) types.SetupToken {
	out := types.SetupToken{ID: st.ID, Status: string(st.Status), Links: toLinks(st.Links)}
	for _, l := range st.Links {
		if l.Rel == "approve" {
			out.ApprovalURL = l.Href
			break
		}
	}
	return out
}
