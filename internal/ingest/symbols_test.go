package ingest

import (
	"reflect"
	"testing"
)

func TestResolveSymbolsSkipsStablecoinsAndExcluded(t *testing.T) {
	currencies := []string{"BTC", "ETH", "USDT", "VND"}
	got := ResolveSymbols(currencies, "USDT",
		CurrencySet([]string{"VND"}),
		CurrencySet([]string{"USDT"}),
	)

	want := []string{"BTCUSDT", "ETHUSDT"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("resolved %v, want %v", got, want)
	}
}

func TestResolveSymbolsPreservesInputOrder(t *testing.T) {
	got := ResolveSymbols([]string{"ADA", "BTC", "ETH"}, "USDT", nil, nil)
	want := []string{"ADAUSDT", "BTCUSDT", "ETHUSDT"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("resolved %v, want %v", got, want)
	}
}

func TestResolveSymbolsNormalizesCase(t *testing.T) {
	got := ResolveSymbols([]string{" btc ", "usdt"}, "USDT", nil, CurrencySet([]string{"USDT"}))
	want := []string{"BTCUSDT"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("resolved %v, want %v", got, want)
	}
}

func TestResolveSymbolsEmptyInput(t *testing.T) {
	if got := ResolveSymbols(nil, "USDT", nil, nil); len(got) != 0 {
		t.Fatalf("expected no symbols, got %v", got)
	}
}
