package email

import (
	"bytes"
	"context"
	"fmt"
	"net/smtp"
	"text/template"

	"github.com/video2doc/video2doc-processing-service/internal/domain/port"
	"go.uber.org/zap"
)

var failureBody = template.Must(template.New("failure").Parse(
	"Hello,\r\n\r\n" +
		"We could not turn your video into a slide document.\r\n\r\n" +
		"Job ID: {{.JobID}}\r\n" +
		"Source: {{.Source}}\r\n" +
		"Reason: {{.Error}}\r\n\r\n" +
		"You can submit the video again. If it keeps failing, reply to this message.\r\n\r\n" +
		"-- video2doc\r\n",
))

type SMTPNotifier struct {
	host   string
	port   int
	from   string
	send   func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
	logger *zap.Logger
}

var _ port.FailureNotifier = (*SMTPNotifier)(nil)

func NewSMTPNotifier(host string, port int, from string, logger *zap.Logger) *SMTPNotifier {
	return &SMTPNotifier{host: host, port: port, from: from, send: smtp.SendMail, logger: logger}
}

func (n *SMTPNotifier) NotifyFailure(_ context.Context, userEmail, jobID, source, errorMsg string) error {
	msg, err := n.compose(userEmail, jobID, source, errorMsg)
	if err != nil {
		return err
	}

	addr := fmt.Sprintf("%s:%d", n.host, n.port)
	if err := n.send(addr, nil, n.from, []string{userEmail}, msg); err != nil {
		n.logger.Error("failed to send failure notification",
			zap.String("to", userEmail),
			zap.String("job_id", jobID),
			zap.Error(err),
		)
		return fmt.Errorf("send email: %w", err)
	}

	n.logger.Info("failure notification sent", zap.String("to", userEmail), zap.String("job_id", jobID))
	return nil
}

func (n *SMTPNotifier) compose(to, jobID, source, errorMsg string) ([]byte, error) {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "From: %s\r\nTo: %s\r\nSubject: video2doc - conversion failed [Job %s]\r\n", n.from, to, jobID)
	buf.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")

	err := failureBody.Execute(&buf, struct{ JobID, Source, Error string }{jobID, source, errorMsg})
	if err != nil {
		return nil, fmt.Errorf("render email: %w", err)
	}
	return buf.Bytes(), nil
}
