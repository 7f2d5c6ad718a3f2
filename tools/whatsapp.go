package tools

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const defaultGraphBaseURL = "https://graph.facebook.com"

var restyClient = resty.New().SetTimeout(30 * time.Second)

// WhatsAppAPIError é o erro devolvido pelo Graph API com status e corpo crus,
// para o handler repassar a mensagem do upstream no 500.
type WhatsAppAPIError struct {
	StatusCode int
	Body       string
}

func (e WhatsAppAPIError) Error() string {
	return fmt.Sprintf("whatsapp api error: status=%d body=%s", e.StatusCode, e.Body)
}

// WhatsAppClient é o gateway de saída para o WhatsApp Cloud API,
// montado por tenant a partir das credenciais do Client.
type WhatsAppClient struct {
	AccessToken   string
	ApiVersion    string // ex: v20.0
	PhoneNumberID string
	BaseURL       string // override em testes; default Graph API
}

type sendTextResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
}

// SendText envia uma mensagem de texto e devolve o wamid atribuído pelo
// provider. Sem wamid não dá pra distinguir depois "nós enviamos" de
// "um humano enviou pelo console do Meta".
func (c WhatsAppClient) SendText(ctx context.Context, to string, text string) (string, error) {
	apiVersion := strings.TrimSpace(c.ApiVersion)
	if apiVersion == "" {
		apiVersion = "v20.0"
	}
	baseURL := strings.TrimSpace(c.BaseURL)
	if baseURL == "" {
		baseURL = defaultGraphBaseURL
	}
	url := fmt.Sprintf("%s/%s/%s/messages", baseURL, apiVersion, strings.TrimSpace(c.PhoneNumberID))

	body := map[string]any{
		"messaging_product": "whatsapp",
		"to":                to,
		"type":              "text",
		"text": map[string]any{
			"body": text,
		},
	}

	var out sendTextResponse
	resp, err := restyClient.R().
		SetContext(ctx).
		SetAuthToken(strings.TrimSpace(c.AccessToken)).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		SetResult(&out).
		Post(url)
	if err != nil {
		return "", err
	}
	if resp.IsError() {
		return "", WhatsAppAPIError{StatusCode: resp.StatusCode(), Body: resp.String()}
	}
	if len(out.Messages) == 0 || strings.TrimSpace(out.Messages[0].ID) == "" {
		return "", fmt.Errorf("whatsapp api: resposta sem message id")
	}
	return out.Messages[0].ID, nil
}
