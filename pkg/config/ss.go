package config

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

const ssConfigScheme = "ssconfig"

// SSConfig represents the shadowsocks configuration structure
type SSConfig struct {
	Server     string `json:"server"`
	ServerPort int    `json:"server_port"`
	Method     string `json:"method"`
	Password   string `json:"password"`
	Prefix     string `json:"prefix"`
}

// BuildURL converts the SSConfig into a shadowsocks transport URL
func (c *SSConfig) BuildURL() (string, error) {
	if c.Server == "" || c.ServerPort == 0 {
		return "", fmt.Errorf("shadowsocks config needs server and server_port")
	}

	userInfo := base64.URLEncoding.EncodeToString([]byte(fmt.Sprintf("%s:%s", c.Method, c.Password)))
	u := &url.URL{
		Scheme: "ss",
		User:   url.User(userInfo),
		Host:   fmt.Sprintf("%s:%d", c.Server, c.ServerPort),
	}
	if c.Prefix != "" {
		q := url.Values{}
		q.Add("prefix", c.Prefix)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// ParseSSConfig parses a JSON shadowsocks config and returns its transport URL
func ParseSSConfig(jsonConfig string) (string, error) {
	var cfg SSConfig
	if err := json.Unmarshal([]byte(jsonConfig), &cfg); err != nil {
		return "", fmt.Errorf("failed to parse JSON config: %w", err)
	}
	return cfg.BuildURL()
}

// ResolveTransport turns the fetch.transport setting into an outline-sdk
// config string. ssconfig:// links are fetched over https, JSON objects are
// parsed as shadowsocks configs and anything else is returned unchanged.
func ResolveTransport(transport string, client *http.Client) (string, error) {
	transport = strings.TrimSpace(transport)
	switch {
	case strings.HasPrefix(transport, ssConfigScheme+"://"):
		return fetchSSConfig(transport, client)
	case strings.HasPrefix(transport, "{"):
		return ParseSSConfig(transport)
	default:
		return transport, nil
	}
}

func fetchSSConfig(configURL string, client *http.Client) (string, error) {
	if client == nil {
		client = http.DefaultClient
	}
	u, err := url.Parse(configURL)
	if err != nil {
		return "", fmt.Errorf("failed to parse URL: %w", err)
	}
	u.Scheme = "https"

	resp, err := client.Get(u.String())
	if err != nil {
		return "", fmt.Errorf("failed to fetch config: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("failed to fetch config: unexpected status %s", resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}

	content := strings.TrimSpace(string(body))
	if strings.HasPrefix(content, "ss://") {
		return content, nil
	}
	return ParseSSConfig(content)
}
