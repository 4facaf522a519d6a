package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/pgzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleProducts = `[
  {"id": "p1", "name": "Airpods", "price": "89.99", "countInStock": 10},
  {"id": "p2", "name": "Mouse", "price": 49.99, "countInStock": 0}
]`

func TestReadProducts_Plain(t *testing.T) {
	path := filepath.Join(t.TempDir(), "products.json")
	require.NoError(t, os.WriteFile(path, []byte(sampleProducts), 0o600))

	products, err := readProducts(path)
	require.NoError(t, err)
	require.Len(t, products, 2)
	assert.Equal(t, "89.99", products[0].Price.StringFixed(2))
	assert.Equal(t, "49.99", products[1].Price.StringFixed(2))
}

func TestReadProducts_Gzip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "products.json.gz")
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := pgzip.NewWriter(f)
	_, err = zw.Write([]byte(sampleProducts))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())

	products, err := readProducts(path)
	require.NoError(t, err)
	require.Len(t, products, 2)
	assert.Equal(t, "Mouse", products[1].Name)
}

func TestReadProducts_Invalid(t *testing.T) {
	for name, body := range map[string]string{
		"NoID":          `[{"name": "x", "price": "1"}]`,
		"NegativePrice": `[{"id": "p1", "name": "x", "price": "-1"}]`,
		"Malformed":     `[{"id": `,
	} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "products.json")
			require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

			_, err := readProducts(path)
			require.Error(t, err)
		})
	}
}

func TestFirstNonEmpty(t *testing.T) {
	assert.Equal(t, "b", firstNonEmpty("", "b", "c"))
	assert.Empty(t, firstNonEmpty("", ""))
}
