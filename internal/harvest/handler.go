package harvest

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode/utf16"
	"unicode/utf8"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/valyala/fasthttp"

	"github.com/emandor/mailsift/internal/history"
	"github.com/emandor/mailsift/internal/middleware"
	"github.com/emandor/mailsift/internal/ocr"
	"github.com/emandor/mailsift/internal/telemetry"
)

// ImagesField is the multipart field carrying uploaded images.
const ImagesField = "images"

// MessagesHeader carries the outcome messages as JSON on a CSV response.
const MessagesHeader = "X-Mailsift-Messages"

type Handler struct {
	svc     *Service
	history history.Recorder
}

func NewHandler(svc *Service, hist history.Recorder) *Handler {
	if hist == nil {
		hist = history.Nop{}
	}
	return &Handler{svc: svc, history: hist}
}

// CreateExtraction runs one action over the submitted text and images.
// The response is the JSON outcome, or the CSV itself with ?format=csv.
func (h *Handler) CreateExtraction(c *fiber.Ctx) error {
	rid, _ := c.Locals(middleware.ReqIDKey).(string)
	log := telemetry.L().With().Str("req_id", rid).Logger()

	images, err := readImages(c)
	if err != nil {
		log.Warn().Err(err).Msg("read_upload_failed")
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "cannot read uploaded images"})
	}

	actionID := c.FormValue("action_id")
	if _, err := uuid.Parse(actionID); err != nil {
		actionID = uuid.NewString()
	}

	in := Input{ActionID: actionID, Text: c.FormValue("text"), Images: images}
	log.Info().Str("action_id", actionID).Int("images", len(images)).Int("text_len", len(in.Text)).Msg("extraction_requested")

	out := h.svc.Run(c.UserContext(), in)

	c.Set("X-Mailsift-Action", out.ActionID)
	c.Set("X-Mailsift-Status", string(out.Status))
	if c.Query("format") == "csv" && out.Download != nil {
		msgs, err := messagesHeader(out.Messages)
		if err != nil {
			log.Error().Err(err).Msg("encode_messages_failed")
		} else {
			c.Set(MessagesHeader, msgs)
		}
		c.Attachment(out.Download.Filename)
		c.Set(fiber.HeaderContentType, out.Download.MIME)
		return c.Send(out.Download.Data)
	}
	return c.JSON(out)
}

func (h *Handler) ListRuns(c *fiber.Ctx) error {
	limit, _ := strconv.Atoi(c.Query("limit", "20"))
	log := telemetry.L()
	runs, err := h.history.Recent(c.UserContext(), limit)
	if err != nil {
		log.Error().Err(err).Msg("history_list_failed")
		return c.Status(fiber.StatusInternalServerError).SendString("db error")
	}
	if runs == nil {
		runs = []history.Run{}
	}
	return c.JSON(runs)
}

// readImages returns the uploaded images in upload order. A request without
// a multipart body carries text only.
func readImages(c *fiber.Ctx) ([]ocr.Image, error) {
	form, err := c.MultipartForm()
	if errors.Is(err, fasthttp.ErrNoMultipartForm) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	files := form.File[ImagesField]
	images := make([]ocr.Image, 0, len(files))
	for _, fh := range files {
		f, err := fh.Open()
		if err != nil {
			return nil, err
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return nil, err
		}
		images = append(images, ocr.Image{Filename: fh.Filename, Data: data})
	}
	return images, nil
}

// messagesHeader encodes msgs as JSON with every non-ASCII rune escaped, so
// paths and filenames survive as a header value.
func messagesHeader(msgs []Message) (string, error) {
	b, err := json.Marshal(msgs)
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	for _, r := range string(b) {
		switch {
		case r < utf8.RuneSelf:
			sb.WriteRune(r)
		case r > 0xFFFF:
			r1, r2 := utf16.EncodeRune(r)
			fmt.Fprintf(&sb, "\\u%04x\\u%04x", r1, r2)
		default:
			fmt.Fprintf(&sb, "\\u%04x", r)
		}
	}
	return sb.String(), nil
}
