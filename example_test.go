package x402_test

import (
	"fmt"
	"net/http"

	x402 "github.com/vitwit/x402pay"
	"github.com/vitwit/x402pay/types"
)

func ExampleX402_Negotiate() {
	x, err := x402.NewWithDefaults(
		"67JmfPZkcYZm5wkzwF7csDCrNpNwWD8AiyWcLZYWmpyP",
		"AejHuZdNpDUiAiwuV2NKXz8K6eLzChYGpTcxptinWbar",
	)
	if err != nil {
		fmt.Println(err)
		return
	}

	h := http.Header{}
	h.Set(types.HeaderClientAddress, "EAx3oF6kmpAa6aR9G6LjhuWoqKJLpYsufSDoGp2dDWkh")
	h.Set(types.HeaderChain, "solana-devnet")

	out, err := x.Negotiate("/latest_newsletter", h)
	if err != nil {
		fmt.Println(err)
		return
	}
	challenge := out.Body.(*types.PaymentRequirementsResponse)

	fmt.Println(out.Status)
	fmt.Println(challenge.Accepts[0].MaxAmountRequired, challenge.Accepts[0].Extra.FeePayer)

	h.Set(types.HeaderPayment, "eyJ0cmFuc2FjdGlvbiI6IkFRSUQifQ==")
	out, _ = x.Negotiate("/latest_newsletter", h)
	fmt.Println(out.Status)

	// Output:
	// 402
	// 100000 AejHuZdNpDUiAiwuV2NKXz8K6eLzChYGpTcxptinWbar
	// 200
}

func ExampleX402_Discover() {
	x, err := x402.NewWithDefaults(
		"67JmfPZkcYZm5wkzwF7csDCrNpNwWD8AiyWcLZYWmpyP",
		"AejHuZdNpDUiAiwuV2NKXz8K6eLzChYGpTcxptinWbar",
	)
	if err != nil {
		fmt.Println(err)
		return
	}

	d, err := x.Discover()
	if err != nil {
		fmt.Println(err)
		return
	}
	for _, item := range d.Items {
		fmt.Println(item.Type, item.Resource)
	}

	// Output:
	// http https://lagoon.markets/latest_newsletter
	// a2a https://lagoon.markets/latest_newsletter
}
