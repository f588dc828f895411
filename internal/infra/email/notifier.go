package email

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"go.uber.org/zap"
)

type SMTPNotifier struct {
	host   string
	port   int
	from   string
	logger *zap.Logger
}

func NewSMTPNotifier(host string, port int, from string, logger *zap.Logger) *SMTPNotifier {
	return &SMTPNotifier{host: host, port: port, from: from, logger: logger}
}

// NotifyForbidden alerts recipients that a video was judged forbidden, listing
// the offending keyframes. Frame links stop working once the staging area is removed.
func (n *SMTPNotifier) NotifyForbidden(_ context.Context, to []string, runID, videoURL string, frameURLs []string) error {
	addr := fmt.Sprintf("%s:%d", n.host, n.port)
	msg := buildMessage(n.from, to, runID, videoURL, frameURLs)

	if err := smtp.SendMail(addr, nil, n.from, to, msg); err != nil {
		n.logger.Error("failed to send forbidden video email",
			zap.Strings("to", to),
			zap.String("run_id", runID),
			zap.Error(err),
		)
		return fmt.Errorf("send email: %w", err)
	}

	n.logger.Info("forbidden video email sent",
		zap.Strings("to", to),
		zap.String("run_id", runID),
	)
	return nil
}

func buildMessage(from string, to []string, runID, videoURL string, frameURLs []string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&b, "Subject: Forbidden content detected [Run %s]\r\n", runID)
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")

	b.WriteString("Hello,\r\n\r\n")
	b.WriteString("The moderation service flagged a video as forbidden.\r\n\r\n")
	fmt.Fprintf(&b, "Run ID: %s\r\n", runID)
	fmt.Fprintf(&b, "Video: %s\r\n", videoURL)
	if len(frameURLs) > 0 {
		fmt.Fprintf(&b, "\r\nFlagged keyframes (%d):\r\n", len(frameURLs))
		for _, u := range frameURLs {
			fmt.Fprintf(&b, "  %s\r\n", u)
		}
	}
	b.WriteString("\r\n-- video-to-frame")
	return []byte(b.String())
}
