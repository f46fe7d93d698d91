package emailjs

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

type Client struct {
	ServiceID   string
	TemplateID  string
	PublicKey   string
	SenderEmail string
	HTTPClient  *http.Client
	BaseURL     string
}

func NewClient(serviceID string, templateID string, publicKey string, senderEmail string) *Client {
	return &Client{
		ServiceID:   serviceID,
		TemplateID:  templateID,
		PublicKey:   publicKey,
		SenderEmail: senderEmail,
		HTTPClient:  &http.Client{Timeout: time.Second * 10},
		BaseURL:     "https://api.emailjs.com",
	}
}

type sendRequest struct {
	ServiceID      string            `json:"service_id"`
	TemplateID     string            `json:"template_id"`
	UserID         string            `json:"user_id"`
	TemplateParams map[string]string `json:"template_params"`
}

// send a rendered reminder to a single recipient. toEmail must not be
// empty - recipient filtering is the caller's job.
func (c *Client) Send(toEmail string, subject string, message string) error {
	// confirm the client has full provider credentials
	if c.ServiceID == "" || c.TemplateID == "" || c.PublicKey == "" || c.SenderEmail == "" {
		return fmt.Errorf("email provider is not fully configured")
	}
	if toEmail == "" {
		return fmt.Errorf("cannot send to an empty recipient")
	}

	reqBody := sendRequest{
		ServiceID:  c.ServiceID,
		TemplateID: c.TemplateID,
		UserID:     c.PublicKey,
		TemplateParams: map[string]string{
			"to_email":   toEmail,
			"from_email": c.SenderEmail,
			"subject":    subject,
			"message":    message,
		},
	}

	marshalled, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("failed to marshal send request, %v", err)
	}

	return c.postJSON("/api/v1.0/email/send", marshalled)
}

// POST a marshalled JSON body to the provider, erroring on any non 2xx
func (c *Client) postJSON(path string, marshalledJSONBody []byte) error {
	url := c.BaseURL + path
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewBuffer(marshalledJSONBody))
	if err != nil {
		return fmt.Errorf("failed to create http request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed making request, %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("bad status %d, body: %s", resp.StatusCode, string(body))
	}

	return nil
}
