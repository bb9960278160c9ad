package catalogs

import (
	"bytes"
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"voxelcraft.ai/advancements/internal/i18n"
)

type Catalogs struct {
	Items        ItemCatalog
	Advancements AdvancementCatalog
}

type ItemCatalog struct {
	Palette       []string
	Defs          map[string]ItemDef
	ByNum         map[int32]string
	PaletteDigest string
	DefsDigest    string
}

type ItemDef struct {
	ID  string `json:"id"`
	Num int32  `json:"num"`
}

// ItemID and ItemKey make the catalog usable as the codec item registry.
func (c ItemCatalog) ItemID(key string) (int32, bool) {
	d, ok := c.Defs[key]
	return d.Num, ok
}

func (c ItemCatalog) ItemKey(id int32) (string, bool) {
	k, ok := c.ByNum[id]
	return k, ok
}

type AdvancementCatalog struct {
	Trees  []TreeDef
	Digest string
}

// TreeDef is one file under advancements/: a display tree and the
// advancements placed in it.
type TreeDef struct {
	Key          string           `json:"tree"`
	Root         RootDef          `json:"root"`
	Advancements []AdvancementDef `json:"advancements"`

	File string `json:"-"`
}

type RootDef struct {
	Title       i18n.Text `json:"title"`
	Description i18n.Text `json:"description"`
	Icon        string    `json:"icon"`
	Background  string    `json:"background"`
}

type AdvancementDef struct {
	Key      string                  `json:"key"`
	Parent   string                  `json:"parent,omitempty"`
	X        float32                 `json:"x"`
	Y        float32                 `json:"y"`
	Display  *DisplayDef             `json:"display,omitempty"`
	Criteria map[string]CriterionDef `json:"criteria"`
	// Requirements lists OR-ed groups of AND-ed criterion names. Empty means
	// every criterion is required.
	Requirements [][]string `json:"requirements,omitempty"`
}

type DisplayDef struct {
	Title          i18n.Text `json:"title"`
	Description    i18n.Text `json:"description"`
	Icon           string    `json:"icon"`
	Frame          string    `json:"frame"` // "task","goal","challenge"
	Background     string    `json:"background,omitempty"`
	ShowToast      bool      `json:"show_toast"`
	AnnounceToChat bool      `json:"announce_to_chat"`
	Hidden         bool      `json:"hidden"`
}

type CriterionDef struct {
	Trigger    string            `json:"trigger,omitempty"`
	Conditions map[string]string `json:"conditions,omitempty"`
	// Goal > 1 makes a scored criterion counted over that many events.
	Goal int `json:"goal,omitempty"`
}

//go:embed advancements.schema.json
var advancementSchemaJSON string

var advancementSchema = jsonschema.MustCompileString("advancements.schema.json", advancementSchemaJSON)

func Load(configDir string) (*Catalogs, error) {
	var c Catalogs

	if err := loadItems(filepath.Join(configDir, "items.json"), &c.Items); err != nil {
		return nil, err
	}
	if err := loadAdvancements(filepath.Join(configDir, "advancements"), &c.Advancements); err != nil {
		return nil, err
	}
	return &c, nil
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func loadItems(path string, out *ItemCatalog) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return parseItems(raw, out)
}

func parseItems(raw []byte, out *ItemCatalog) error {
	out.DefsDigest = sha256Hex(raw)

	var defs []ItemDef
	if err := json.Unmarshal(raw, &defs); err != nil {
		return fmt.Errorf("items.json: %w", err)
	}
	out.Defs = map[string]ItemDef{}
	out.ByNum = map[int32]string{}
	for _, d := range defs {
		if d.ID == "" {
			return fmt.Errorf("items.json: empty id")
		}
		if d.Num <= 0 {
			return fmt.Errorf("items.json: %s: num must be positive", d.ID)
		}
		if _, dup := out.Defs[d.ID]; dup {
			return fmt.Errorf("items.json: duplicate id %s", d.ID)
		}
		if other, dup := out.ByNum[d.Num]; dup {
			return fmt.Errorf("items.json: %s and %s share num %d", other, d.ID, d.Num)
		}
		out.Defs[d.ID] = d
		out.ByNum[d.Num] = d.ID
	}

	ids := make([]string, 0, len(out.Defs))
	for id := range out.Defs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out.Palette = ids
	palJSON, _ := json.Marshal(ids)
	out.PaletteDigest = sha256Hex(palJSON)
	return nil
}

func loadAdvancements(dir string, out *AdvancementCatalog) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			out.Digest = sha256Hex(nil)
			return nil
		}
		return err
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.HasSuffix(e.Name(), ".json") {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)

	var concat bytes.Buffer
	seenTree := map[string]string{}
	seenKey := map[string]string{}
	for _, p := range files {
		b, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		concat.Write(b)
		concat.WriteByte('\n')

		td, err := parseTree(filepath.Base(p), b)
		if err != nil {
			return err
		}
		if other, dup := seenTree[td.Key]; dup {
			return fmt.Errorf("advancements %s: tree %q already defined in %s", td.File, td.Key, other)
		}
		seenTree[td.Key] = td.File
		for _, a := range td.Advancements {
			if other, dup := seenKey[a.Key]; dup {
				return fmt.Errorf("advancements %s: %q already defined in %s", td.File, a.Key, other)
			}
			seenKey[a.Key] = td.File
		}
		out.Trees = append(out.Trees, td)
	}
	out.Digest = sha256Hex(concat.Bytes())
	return nil
}

// parseTree validates one tree file against the schema, then decodes it.
func parseTree(name string, raw []byte) (TreeDef, error) {
	var td TreeDef
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return td, fmt.Errorf("advancements %s: %w", name, err)
	}
	if err := advancementSchema.Validate(doc); err != nil {
		return td, fmt.Errorf("advancements %s: %w", name, err)
	}
	if err := json.Unmarshal(raw, &td); err != nil {
		return td, fmt.Errorf("advancements %s: %w", name, err)
	}
	td.File = name
	for _, a := range td.Advancements {
		for _, group := range a.Requirements {
			for _, id := range group {
				if _, ok := a.Criteria[id]; !ok {
					return td, fmt.Errorf("advancements %s: %s: requirement names unknown criterion %q", name, a.Key, id)
				}
			}
		}
	}
	return td, nil
}
