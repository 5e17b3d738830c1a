// Package verify publishes contract source code to an Etherscan compatible
// block explorer.
package verify

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/ethereum/go-ethereum/common"

	"github.com/Mubson1/Deploy-Lottery/internal/artifacts"
)

// Explorer result strings.
const (
	resultPending         = "Pending in queue"
	resultAlreadyVerified = "Already Verified"
	resultNotIndexed      = "Unable to locate ContractCode"
)

// Config configures a Client.
type Config struct {
	APIURL string
	APIKey string
	// HTTPTimeout bounds a single request. Zero means 30s.
	HTTPTimeout time.Duration
	// PollInterval is the first delay between status checks. Zero means 5s.
	PollInterval time.Duration
	// Timeout bounds the whole publication. Zero means 5m.
	Timeout time.Duration
	Logger  *slog.Logger
}

// Client talks to the explorer API.
type Client struct {
	httpClient   *http.Client
	apiURL       string
	apiKey       string
	pollInterval time.Duration
	timeout      time.Duration
	logger       *slog.Logger
}

// New creates a client. A missing API key is reported by Publish, so a
// client can always be constructed.
func New(cfg Config) *Client {
	if cfg.HTTPTimeout == 0 {
		cfg.HTTPTimeout = 30 * time.Second
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = 5 * time.Second
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 5 * time.Minute
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Client{
		httpClient:   &http.Client{Timeout: cfg.HTTPTimeout},
		apiURL:       strings.TrimSuffix(cfg.APIURL, "/"),
		apiKey:       cfg.APIKey,
		pollInterval: cfg.PollInterval,
		timeout:      cfg.Timeout,
		logger:       cfg.Logger,
	}
}

// Request describes a deployed contract to publish.
type Request struct {
	Address  common.Address
	Artifact *artifacts.ContractArtifact
	// ConstructorArgs are the ABI encoded constructor arguments.
	ConstructorArgs []byte
	// Input, when set, is submitted as standard JSON input instead of the
	// artifact's single source file. SourceName is the contract's file
	// inside Input.Sources.
	Input      *artifacts.StandardInput
	SourceName string
}

// Publish submits the source of a deployed contract and waits until the
// explorer has checked it. It returns the submission GUID.
func (c *Client) Publish(ctx context.Context, req Request) (string, error) {
	if c.apiKey == "" {
		return "", ErrNoAPIKey
	}
	art := req.Artifact
	if art == nil || art.Compiler == nil || art.Compiler.Version == "" {
		return "", ErrNoSource
	}
	if req.Input == nil && art.Source == "" {
		return "", ErrNoSource
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	form := url.Values{}
	form.Set("apikey", c.apiKey)
	form.Set("module", "contract")
	form.Set("action", "verifysourcecode")
	form.Set("contractaddress", req.Address.Hex())
	if req.Input != nil {
		input, err := json.Marshal(req.Input)
		if err != nil {
			return "", fmt.Errorf("encode standard input: %w", err)
		}
		form.Set("sourceCode", string(input))
		form.Set("codeformat", "solidity-standard-json-input")
		form.Set("contractname", req.SourceName+":"+art.ContractName)
	} else {
		form.Set("sourceCode", art.Source)
		form.Set("codeformat", "solidity-single-file")
		form.Set("contractname", art.ContractName)
	}
	form.Set("compilerversion", compilerVersion(art.Compiler.Version))
	form.Set("optimizationUsed", boolFlag(art.Compiler.Optimizer.Enabled))
	form.Set("runs", strconv.Itoa(art.Compiler.Optimizer.Runs))
	// Etherscan spells the parameter this way.
	form.Set("constructorArguements", hex.EncodeToString(req.ConstructorArgs))
	if art.Compiler.EVMVersion != "" {
		form.Set("evmversion", art.Compiler.EVMVersion)
	}

	// A freshly deployed contract takes a few blocks to show up in the
	// explorer index; submission is retried until it does.
	var guid string
	submit := func() error {
		res, err := c.do(ctx, http.MethodPost, form)
		if err != nil {
			return retryable(err)
		}
		guid = res
		return nil
	}
	if err := backoff.Retry(submit, c.newBackOff(ctx)); err != nil {
		return "", fmt.Errorf("submit %s: %w", art.ContractName, err)
	}

	c.logger.Info("source submitted",
		slog.String("contract", art.ContractName),
		slog.String("address", req.Address.Hex()),
		slog.String("guid", guid),
	)

	if err := c.waitVerified(ctx, guid); err != nil {
		return guid, fmt.Errorf("verify %s: %w", art.ContractName, err)
	}

	c.logger.Info("source verified",
		slog.String("contract", art.ContractName),
		slog.String("address", req.Address.Hex()),
	)
	return guid, nil
}

// Status returns the explorer's current verdict on a submission.
func (c *Client) Status(ctx context.Context, guid string) (string, error) {
	q := url.Values{}
	q.Set("apikey", c.apiKey)
	q.Set("module", "contract")
	q.Set("action", "checkverifystatus")
	q.Set("guid", guid)
	return c.do(ctx, http.MethodGet, q)
}

func (c *Client) waitVerified(ctx context.Context, guid string) error {
	check := func() error {
		_, err := c.Status(ctx, guid)
		var apiErr *APIError
		switch {
		case err == nil:
			return nil
		case !errors.As(err, &apiErr):
			return retryable(err)
		case apiErr.Result == resultAlreadyVerified:
			return nil
		case strings.HasPrefix(apiErr.Result, resultPending):
			c.logger.Debug("verification pending", slog.String("guid", guid))
			return ErrStillPending
		case strings.HasPrefix(apiErr.Result, "Fail"):
			return backoff.Permanent(fmt.Errorf("%w: %s", ErrRejected, apiErr.Result))
		default:
			return retryable(err)
		}
	}
	return backoff.Retry(check, c.newBackOff(ctx))
}

func (c *Client) newBackOff(ctx context.Context) backoff.BackOff {
	eback := backoff.NewExponentialBackOff()
	eback.InitialInterval = c.pollInterval
	eback.MaxInterval = 4 * c.pollInterval
	eback.MaxElapsedTime = c.timeout
	return backoff.WithContext(eback, ctx)
}

// retryable marks explorer rejections as permanent; everything else is
// retried.
func retryable(err error) error {
	switch {
	case errors.Is(err, ErrRateLimited),
		errors.Is(err, ErrUnavailable),
		errors.Is(err, errNotIndexedYet),
		errors.Is(err, ErrStillPending):
		return err
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return backoff.Permanent(err)
	}
	return err
}

type apiResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Result  string `json:"result"`
}

// do sends one request and returns the "result" field of a successful
// response.
func (c *Client) do(ctx context.Context, method string, params url.Values) (string, error) {
	var (
		req *http.Request
		err error
	)
	if method == http.MethodPost {
		req, err = http.NewRequestWithContext(ctx, method, c.apiURL, strings.NewReader(params.Encode()))
		if err == nil {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}
	} else {
		req, err = http.NewRequestWithContext(ctx, method, c.apiURL+"?"+params.Encode(), nil)
	}
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: read body: %v", ErrUnavailable, err)
	}
	if resp.StatusCode >= 400 {
		return "", &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(body))}
	}

	var out apiResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if out.Status != "1" {
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: out.Message, Result: out.Result}
		if strings.Contains(out.Result, resultNotIndexed) {
			return "", fmt.Errorf("%w: %w", errNotIndexedYet, apiErr)
		}
		if strings.Contains(strings.ToLower(out.Result), "rate limit") {
			return "", fmt.Errorf("%w: %w", ErrRateLimited, apiErr)
		}
		return "", apiErr
	}
	return out.Result, nil
}

// compilerVersion turns solc's "0.6.6+commit.6c089d02" into the explorer's
// "v0.6.6+commit.6c089d02".
func compilerVersion(v string) string {
	if strings.HasPrefix(v, "v") {
		return v
	}
	return "v" + v
}

func boolFlag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
