package domain

import "testing"

func TestStockStatus(t *testing.T) {
	cases := []struct {
		stock, minStock int
		want            string
	}{
		{0, 0, ProductStatusOutOfStock},
		{0, 10, ProductStatusOutOfStock},
		{1, 10, ProductStatusLowStock},
		{10, 10, ProductStatusLowStock},
		{11, 10, ProductStatusInStock},
		{1, 0, ProductStatusInStock},
		{5, 1, ProductStatusInStock},
	}
	for _, tc := range cases {
		if got := StockStatus(tc.stock, tc.minStock); got != tc.want {
			t.Fatalf("StockStatus(%d, %d) = %q, want %q", tc.stock, tc.minStock, got, tc.want)
		}
	}
}
