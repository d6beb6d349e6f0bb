package services

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

const cloudinaryAPI = "https://api.cloudinary.com"

// ErrUploadNotConfigured is returned when no Cloudinary cloud is set.
var ErrUploadNotConfigured = errors.New("image upload is not configured")

type CloudinaryConfig struct {
	CloudName    string
	UploadPreset string
	APIKey       string // signed destroy only
	APISecret    string // signed destroy only
	BaseURL      string // defaults to the public API
}

type cloudinaryResponse struct {
	SecureURL string `json:"secure_url"`
	PublicID  string `json:"public_id"`
	Format    string `json:"format"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	Bytes     int64  `json:"bytes"`
	Result    string `json:"result"`
	Error     *struct {
		Message string `json:"message"`
	} `json:"error"`
}

type ImageUploadResult struct {
	URL      string `json:"url"`
	PublicID string `json:"public_id"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	Format   string `json:"format"`
}

// ImageUploader stores images on Cloudinary with an unsigned preset.
type ImageUploader struct {
	cfg    CloudinaryConfig
	client *http.Client
	log    *zap.Logger
	now    func() time.Time
}

func NewImageUploader(cfg CloudinaryConfig, logger *zap.Logger) *ImageUploader {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = cloudinaryAPI
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &ImageUploader{
		cfg:    cfg,
		client: &http.Client{Timeout: 30 * time.Second},
		log:    logger.Named("images"),
		now:    time.Now,
	}
}

func (u *ImageUploader) Enabled() bool {
	return u.cfg.CloudName != "" && u.cfg.UploadPreset != ""
}

func (u *ImageUploader) endpoint(action string) string {
	return fmt.Sprintf("%s/v1_1/%s/image/%s", u.cfg.BaseURL, u.cfg.CloudName, action)
}

// Upload sends one image and returns its delivery URL.
func (u *ImageUploader) Upload(ctx context.Context, filename string, file io.Reader) (*ImageUploadResult, error) {
	if !u.Enabled() {
		return nil, ErrUploadNotConfigured
	}

	var requestBody bytes.Buffer
	writer := multipart.NewWriter(&requestBody)

	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("build upload body: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	if err := writer.WriteField("upload_preset", u.cfg.UploadPreset); err != nil {
		return nil, fmt.Errorf("build upload body: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("build upload body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.endpoint("upload"), &requestBody)
	if err != nil {
		return nil, fmt.Errorf("create upload request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	res, err := u.do(req)
	if err != nil {
		u.log.Error("image upload failed", zap.String("filename", filename), zap.Error(err))
		return nil, err
	}

	return &ImageUploadResult{
		URL:      res.SecureURL,
		PublicID: res.PublicID,
		Width:    res.Width,
		Height:   res.Height,
		Format:   res.Format,
	}, nil
}

// Destroy deletes an uploaded image. It needs the API key and secret.
func (u *ImageUploader) Destroy(ctx context.Context, publicID string) error {
	if u.cfg.CloudName == "" || u.cfg.APIKey == "" || u.cfg.APISecret == "" {
		return ErrUploadNotConfigured
	}

	timestamp := strconv.FormatInt(u.now().Unix(), 10)
	form := url.Values{}
	form.Set("public_id", publicID)
	form.Set("timestamp", timestamp)
	form.Set("api_key", u.cfg.APIKey)
	form.Set("signature", u.sign(map[string]string{"public_id": publicID, "timestamp": timestamp}))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.endpoint("destroy"), strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("create destroy request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	res, err := u.do(req)
	if err != nil {
		return err
	}
	if res.Result != "ok" {
		return fmt.Errorf("cloudinary destroy %s: %s", publicID, res.Result)
	}
	return nil
}

// sign computes the Cloudinary request signature: the sorted key=value
// pairs joined by & with the secret appended, hashed with SHA-1.
func (u *ImageUploader) sign(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+params[k])
	}
	sum := sha1.Sum([]byte(strings.Join(pairs, "&") + u.cfg.APISecret))
	return hex.EncodeToString(sum[:])
}

func (u *ImageUploader) do(req *http.Request) (*cloudinaryResponse, error) {
	resp, err := u.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("cloudinary request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read cloudinary response: %w", err)
	}

	var res cloudinaryResponse
	if err := json.Unmarshal(body, &res); err != nil {
		return nil, fmt.Errorf("decode cloudinary response (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK {
		msg := http.StatusText(resp.StatusCode)
		if res.Error != nil && res.Error.Message != "" {
			msg = res.Error.Message
		}
		return nil, fmt.Errorf("cloudinary: status %d: %s", resp.StatusCode, msg)
	}
	return &res, nil
}

// TransformURL returns a delivery URL resized to width, keeping the aspect
// ratio and letting Cloudinary pick format and quality.
func (u *ImageUploader) TransformURL(publicID string, width int) string {
	transform := "q_auto,f_auto"
	if width > 0 {
		transform = fmt.Sprintf("w_%d,c_limit,", width) + transform
	}
	return fmt.Sprintf("https://res.cloudinary.com/%s/image/upload/%s/%s", u.cfg.CloudName, transform, publicID)
}
