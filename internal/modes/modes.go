package modes

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"novasight/internal/domain"
)

// Spec is everything the engine needs to know about one detection mode.
type Spec struct {
	Mode domain.DetectionMode
	// Intent is the token the classifier returns for this mode.
	Intent string
	// Route is the backend path frames are uploaded to.
	Route string
	// Path is the navigation destination announced to the UI.
	Path string
	// ResultField is the single response field read from the backend.
	ResultField string
	// LeadingPhrase is prepended to the extracted field before speaking.
	LeadingPhrase string
	// Label names the function in the voice switch announcement.
	Label    string
	Interval time.Duration
	Facing   domain.Facing
	// Deferred modes hold the captured frame until the user supplies metadata.
	Deferred bool
}

// DefaultMode is where unknown or failed voice commands land.
const DefaultMode = domain.ModeDocument

const announcementSuffix = "Hãy đưa camera về phía đối tượng cần nhận diện."

// Table is the per-mode configuration keyed by detection mode.
type Table struct {
	specs map[domain.DetectionMode]Spec
}

// Defaults returns the built-in table.
func Defaults() *Table {
	specs := []Spec{
		{
			Mode:        domain.ModeDocument,
			Intent:      "text",
			Route:       "/document_recognition",
			Path:        "/",
			ResultField: "text",
			Label:       "Nhận diện văn bản",
			Interval:    10 * time.Second,
			Facing:      domain.FacingBack,
		},
		{
			Mode:          domain.ModeCurrency,
			Intent:        "money",
			Route:         "/currency_detection",
			Path:          "/money",
			ResultField:   "total_money",
			LeadingPhrase: "Tiền mặt có mệnh giá là: ",
			Label:         "Nhận diện tiền mặt",
			Interval:      5 * time.Second,
			Facing:        domain.FacingBack,
		},
		{
			Mode:        domain.ModeCaption,
			Intent:      "item",
			Route:       "/image_captioning",
			Path:        "/image",
			ResultField: "description",
			Label:       "Giải thích hình ảnh",
			Interval:    5 * time.Second,
			Facing:      domain.FacingBack,
		},
		{
			Mode:        domain.ModeProduct,
			Intent:      "product",
			Route:       "/product_recognition",
			Path:        "/qr",
			ResultField: "description",
			Label:       "Nhận diện sản phẩm thông qua mã vạch",
			Interval:    5 * time.Second,
			Facing:      domain.FacingBack,
		},
		{
			Mode:        domain.ModeDistance,
			Intent:      "distance",
			Route:       "/distance_estimate",
			Path:        "/distance",
			ResultField: "description",
			Label:       "Tìm kiếm vị trí của một vật thể và khoảng cách từ vị trí hiện tại",
			Interval:    5 * time.Second,
			Facing:      domain.FacingBack,
		},
		{
			Mode:        domain.ModeFaceRegister,
			Intent:      "add_face",
			Route:       "/face_detection/register",
			Path:        "/add-face",
			ResultField: "description",
			Label:       "Đăng ký nhận diện khuôn mặt với người thân, bạn bè của tôi",
			Interval:    5 * time.Second,
			Facing:      domain.FacingFront,
			Deferred:    true,
		},
		{
			Mode:        domain.ModeFaceRecognize,
			Intent:      "face",
			Route:       "/face_detection/recognize",
			Path:        "/scan-face",
			ResultField: "description",
			Label:       "Nhận diện khuôn mặt",
			Interval:    5 * time.Second,
			Facing:      domain.FacingFront,
		},
	}

	t := &Table{specs: make(map[domain.DetectionMode]Spec, len(specs))}
	for _, spec := range specs {
		t.specs[spec.Mode] = spec
	}
	return t
}

// Lookup returns the spec for mode, falling back to the default mode.
func (t *Table) Lookup(mode domain.DetectionMode) Spec {
	if spec, ok := t.specs[mode]; ok {
		return spec
	}
	return t.specs[DefaultMode]
}

// ModeForIntent maps a classifier token to a mode. ok is false when the token
// is outside the known set and the default mode was substituted.
func (t *Table) ModeForIntent(intent string) (domain.DetectionMode, bool) {
	token := strings.ToLower(strings.TrimSpace(intent))
	for _, mode := range domain.AllModes {
		if t.specs[mode].Intent == token {
			return mode, true
		}
	}
	return DefaultMode, false
}

// Announcement is spoken after a voice command switches to mode.
func (t *Table) Announcement(mode domain.DetectionMode) string {
	return fmt.Sprintf("Đang thực hiện chức năng %s. %s", t.Lookup(mode).Label, announcementSuffix)
}

type overrideFile struct {
	Modes map[string]overrideEntry `yaml:"modes"`
}

type overrideEntry struct {
	Route         *string `yaml:"route"`
	ResultField   *string `yaml:"result_field"`
	LeadingPhrase *string `yaml:"leading_phrase"`
	IntervalMS    *int    `yaml:"interval_ms"`
}

// LoadOverrides returns the default table with the YAML overrides at path
// applied. An empty or missing path yields the defaults.
func LoadOverrides(path string) (*Table, error) {
	table := Defaults()
	if strings.TrimSpace(path) == "" {
		return table, nil
	}

	contents, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return table, nil
		}
		return nil, fmt.Errorf("failed to read modes file %q: %w", path, err)
	}

	var file overrideFile
	if err := yaml.Unmarshal(contents, &file); err != nil {
		return nil, fmt.Errorf("failed to parse modes file %q: %w", path, err)
	}

	for name, entry := range file.Modes {
		mode := domain.DetectionMode(name)
		spec, ok := table.specs[mode]
		if !ok {
			return nil, fmt.Errorf("modes file %q: unknown mode %q", path, name)
		}
		if entry.Route != nil {
			spec.Route = *entry.Route
		}
		if entry.ResultField != nil {
			spec.ResultField = *entry.ResultField
		}
		if entry.LeadingPhrase != nil {
			spec.LeadingPhrase = *entry.LeadingPhrase
		}
		if entry.IntervalMS != nil {
			if *entry.IntervalMS <= 0 {
				return nil, fmt.Errorf("modes file %q: mode %q interval must be positive", path, name)
			}
			spec.Interval = time.Duration(*entry.IntervalMS) * time.Millisecond
		}
		table.specs[mode] = spec
	}

	return table, nil
}
