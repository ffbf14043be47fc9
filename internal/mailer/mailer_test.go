package mailer

import (
	"bytes"
	"context"
	"encoding/base64"
	"io"
	"mime"
	"mime/multipart"
	"net/mail"
	"strings"
	"testing"
)

func TestBuildMessage_PlainHTML(t *testing.T) {
	c := NewClient("smtp.example.com:587", "", "", "studio@example.com")

	raw, err := c.buildMessage("user@example.com", "Hello", "<p>Hi</p>", nil)
	if err != nil {
		t.Fatalf("buildMessage error: %v", err)
	}

	msg, err := mail.ReadMessage(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("parse message: %v", err)
	}

	if got := msg.Header.Get("From"); got != "studio@example.com" {
		t.Fatalf("From = %q, want studio@example.com", got)
	}
	if got := msg.Header.Get("To"); got != "user@example.com" {
		t.Fatalf("To = %q, want user@example.com", got)
	}
	if got := msg.Header.Get("Subject"); got != "Hello" {
		t.Fatalf("Subject = %q, want Hello", got)
	}
	if ct := msg.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Fatalf("Content-Type = %q, want text/html", ct)
	}

	body, _ := io.ReadAll(msg.Body)
	if !strings.Contains(string(body), "<p>Hi</p>") {
		t.Fatalf("body %q does not contain html", body)
	}
}

func TestBuildMessage_NonASCIISubject(t *testing.T) {
	c := NewClient("smtp.example.com:587", "", "", "studio@example.com")

	raw, err := c.buildMessage("user@example.com", "Ваше фото готово", "<p>Hi</p>", nil)
	if err != nil {
		t.Fatalf("buildMessage error: %v", err)
	}

	msg, err := mail.ReadMessage(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("parse message: %v", err)
	}

	dec := new(mime.WordDecoder)
	subject, err := dec.DecodeHeader(msg.Header.Get("Subject"))
	if err != nil {
		t.Fatalf("decode subject: %v", err)
	}
	if subject != "Ваше фото готово" {
		t.Fatalf("decoded subject = %q", subject)
	}
}

func TestBuildMessage_WithAttachment(t *testing.T) {
	c := NewClient("smtp.example.com:587", "", "", "studio@example.com")

	data := bytes.Repeat([]byte("jpeg-data-"), 20)
	raw, err := c.buildMessage("user@example.com", "Photo", "<p>Attached</p>", []Attachment{
		{FileName: "processed_cat.jpg", ContentType: "image/jpeg", Data: data},
	})
	if err != nil {
		t.Fatalf("buildMessage error: %v", err)
	}

	msg, err := mail.ReadMessage(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("parse message: %v", err)
	}

	mediaType, params, err := mime.ParseMediaType(msg.Header.Get("Content-Type"))
	if err != nil {
		t.Fatalf("parse content type: %v", err)
	}
	if mediaType != "multipart/mixed" {
		t.Fatalf("media type = %q, want multipart/mixed", mediaType)
	}

	mr := multipart.NewReader(msg.Body, params["boundary"])

	htmlPart, err := mr.NextPart()
	if err != nil {
		t.Fatalf("read html part: %v", err)
	}
	htmlBody, _ := io.ReadAll(htmlPart)
	if !strings.Contains(string(htmlBody), "<p>Attached</p>") {
		t.Fatalf("html part = %q", htmlBody)
	}

	attPart, err := mr.NextPart()
	if err != nil {
		t.Fatalf("read attachment part: %v", err)
	}
	if ct := attPart.Header.Get("Content-Type"); ct != "image/jpeg" {
		t.Fatalf("attachment content type = %q, want image/jpeg", ct)
	}
	if cd := attPart.Header.Get("Content-Disposition"); !strings.Contains(cd, `filename="processed_cat.jpg"`) {
		t.Fatalf("attachment disposition = %q", cd)
	}

	encoded, _ := io.ReadAll(attPart)
	decoded, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(string(encoded), "\r\n", ""))
	if err != nil {
		t.Fatalf("decode attachment: %v", err)
	}
	if !bytes.Equal(decoded, data) {
		t.Fatalf("attachment data does not round-trip")
	}

	if _, err := mr.NextPart(); err != io.EOF {
		t.Fatalf("expected exactly two parts, got extra part (err %v)", err)
	}
}

func TestSend_NilClient(t *testing.T) {
	var c *Client
	if err := c.Send(context.Background(), "user@example.com", "s", "b"); err == nil {
		t.Fatalf("expected error for nil client")
	}
}
