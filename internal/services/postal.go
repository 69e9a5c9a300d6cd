package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/example/comanda/internal/utils"
)

var (
	ErrInvalidPostalCode = errors.New("postal code must have 8 digits")
	ErrPostalNotFound    = errors.New("postal code not found")
)

// Address is the part of a postal lookup that fills a delivery form.
type Address struct {
	PostalCode   string `json:"postal_code"`
	Street       string `json:"street"`
	Neighborhood string `json:"neighborhood"`
	City         string `json:"city"`
	State        string `json:"state"`
}

// PostalLookup resolves a postal code. Failures never block checkout; the
// customer types the address instead.
type PostalLookup interface {
	Lookup(ctx context.Context, postalCode string) (*Address, error)
}

// ViaCEP queries the public viacep.com.br service.
type ViaCEP struct {
	baseURL string
	client  *http.Client
}

func NewViaCEP(baseURL string) *ViaCEP {
	return &ViaCEP{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 5 * time.Second},
	}
}

type viaCEPResponse struct {
	CEP        string `json:"cep"`
	Logradouro string `json:"logradouro"`
	Bairro     string `json:"bairro"`
	Localidade string `json:"localidade"`
	UF         string `json:"uf"`
	// "erro" has been sent both as a boolean and as the string "true".
	Erro any `json:"erro"`
}

func (r viaCEPResponse) notFound() bool {
	switch v := r.Erro.(type) {
	case bool:
		return v
	case string:
		return v == "true"
	}
	return false
}

func (v *ViaCEP) Lookup(ctx context.Context, postalCode string) (*Address, error) {
	cep := utils.DigitsOnly(postalCode)
	if len(cep) != 8 {
		return nil, ErrInvalidPostalCode
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/%s/json/", v.baseURL, cep), nil)
	if err != nil {
		return nil, fmt.Errorf("viacep request build: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := v.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("viacep request: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode == http.StatusBadRequest {
		return nil, ErrInvalidPostalCode
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("viacep returned status %d", resp.StatusCode)
	}

	var data viaCEPResponse
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, fmt.Errorf("viacep unmarshal: %w", err)
	}
	if data.notFound() {
		return nil, ErrPostalNotFound
	}

	return &Address{
		PostalCode:   cep[:5] + "-" + cep[5:],
		Street:       data.Logradouro,
		Neighborhood: data.Bairro,
		City:         data.Localidade,
		State:        data.UF,
	}, nil
}
