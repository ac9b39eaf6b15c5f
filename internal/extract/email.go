package extract

import (
	"fmt"
	"strings"
)

// 转发邮件缺少头部时使用的默认值
const (
	DefaultSubject = "No Subject"
	DefaultSender  = "Unknown Sender"
)

// Email 是从纯文本中解析出的邮件。
type Email struct {
	Subject string
	From    string
	Body    string
}

// ParseEmail 逐行解析转发的邮件文本。
// 以 subject:/from:（不区分大小写）开头的行设置对应头部，第一个空行之后为正文。
// 正文为空时退回到整段原文。
func ParseEmail(raw string) Email {
	var subject, from string
	var body strings.Builder
	inBody := false

	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case hasPrefixFold(line, "subject:"):
			subject = strings.TrimSpace(line[len("subject:"):])
		case hasPrefixFold(line, "from:"):
			from = strings.TrimSpace(line[len("from:"):])
		case line == "" && !inBody:
			inBody = true
		case inBody:
			body.WriteString(line)
			body.WriteByte('\n')
		}
	}

	e := Email{Subject: subject, From: from, Body: strings.TrimSpace(body.String())}
	if e.Subject == "" {
		e.Subject = DefaultSubject
	}
	if e.From == "" {
		e.From = DefaultSender
	}
	if e.Body == "" {
		e.Body = raw
	}
	return e
}

func hasPrefixFold(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}

// Content 返回入库时使用的文本形式。
func (e Email) Content() string {
	return fmt.Sprintf("SUBJECT: %s\nFROM: %s\n\nCONTENT:\n%s", e.Subject, e.From, e.Body)
}

// DocumentName 返回邮件文档的展示名，主题最多保留 30 个字符。
func (e Email) DocumentName() string {
	subject := []rune(e.Subject)
	if len(subject) > 30 {
		subject = subject[:30]
	}
	return "Email_" + string(subject) + "..."
}
