package services

import (
	"bytes"
	"fmt"
	"html/template"
	"net/smtp"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

type MailConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
	SiteName string
	// TemplateDir holds the email templates, web/templates/email by default.
	TemplateDir string
}

type MailService struct {
	cfg     MailConfig
	enabled bool
	log     *zap.Logger
	send    func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewMailService(cfg MailConfig, logger *zap.Logger) *MailService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.TemplateDir == "" {
		cfg.TemplateDir = filepath.Join("web", "templates", "email")
	}
	if cfg.SiteName == "" {
		cfg.SiteName = "Inkwell"
	}

	enabled := cfg.Host != "" && cfg.Port != "" && cfg.Username != "" && cfg.Password != "" && cfg.From != ""
	if !enabled {
		logger.Warn("mail service disabled: missing SMTP settings")
	}

	return &MailService{
		cfg:     cfg,
		enabled: enabled,
		log:     logger.Named("mail"),
		send:    smtp.SendMail,
	}
}

func (s *MailService) Enabled() bool {
	return s != nil && s.enabled
}

func (s *MailService) buildMessage(to []string, subject, body string) []byte {
	mime := "MIME-version: 1.0;\r\nContent-Type: text/html; charset=\"UTF-8\";\r\n\r\n"
	return []byte(fmt.Sprintf("To: %s\r\n"+
		"From: %s <%s>\r\n"+
		"Subject: %s\r\n"+
		"%s%s", strings.Join(to, ","), s.cfg.SiteName, s.cfg.From, subject, mime, body))
}

func (s *MailService) deliver(to []string, subject, body string) error {
	auth := smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	addr := s.cfg.Host + ":" + s.cfg.Port

	if err := s.send(addr, auth, s.cfg.From, to, s.buildMessage(to, subject, body)); err != nil {
		s.log.Error("send email failed", zap.Strings("to", to), zap.Error(err))
		return err
	}
	s.log.Info("email sent", zap.Strings("to", to), zap.String("subject", subject))
	return nil
}

func (s *MailService) sendAsync(to []string, subject, body string) {
	if !s.Enabled() {
		return
	}
	go func() {
		_ = s.deliver(to, subject, body)
	}()
}

func (s *MailService) parseTemplate(templateName string, data interface{}) (string, error) {
	path := filepath.Join(s.cfg.TemplateDir, templateName)
	t, err := template.ParseFiles(path)
	if err != nil {
		return "", fmt.Errorf("failed to parse template %s: %w", templateName, err)
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute template %s: %w", templateName, err)
	}
	return buf.String(), nil
}

func (s *MailService) SendWelcomeEmail(email, username string) {
	if !s.Enabled() {
		return
	}
	body, err := s.parseTemplate("welcome.html", map[string]string{
		"Username": username,
		"SiteName": s.cfg.SiteName,
	})
	if err != nil {
		s.log.Error("render welcome email failed", zap.Error(err))
		return
	}
	s.sendAsync([]string{email}, "Welcome to "+s.cfg.SiteName, body)
}

// SendReplyNotification tells a comment author someone answered them.
func (s *MailService) SendReplyNotification(email, replier, postTitle, replyContent, originalContent, link string) {
	if !s.Enabled() {
		return
	}
	body, err := s.parseTemplate("notification.html", map[string]string{
		"ActiveUser":      replier,
		"ArticleTitle":    postTitle,
		"ReplyContent":    replyContent,
		"OriginalContent": originalContent,
		"PostLink":        link,
		"SiteName":        s.cfg.SiteName,
	})
	if err != nil {
		s.log.Error("render notification email failed", zap.Error(err))
		return
	}
	s.sendAsync([]string{email}, replier+" replied to your comment on \""+postTitle+"\"", body)
}
