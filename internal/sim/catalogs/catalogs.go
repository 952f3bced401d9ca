package catalogs

import (
	"bytes"
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed blocks.schema.json
var blocksSchemaJSON string

type BlockCatalog struct {
	Palette       []string
	Index         map[string]BlockVariant
	Defs          map[string]BlockDef
	PaletteDigest string
	DefsDigest    string
}

type BlockDef struct {
	ID          string     `json:"id"`
	Solid       bool       `json:"solid"`
	Transparent bool       `json:"transparent"`
	Color       [3]float32 `json:"color"`
}

// Def returns the canonical definition of a variant.
func Def(b BlockVariant) BlockDef {
	return BlockDef{
		ID:          b.String(),
		Solid:       b.IsSolid(),
		Transparent: b.IsTransparent(),
		Color:       b.Color(),
	}
}

// DefaultBlockCatalog builds the catalog from the compiled-in variants.
func DefaultBlockCatalog() *BlockCatalog {
	defs := make([]BlockDef, 0, NumVariants)
	for _, v := range Variants() {
		defs = append(defs, Def(v))
	}
	raw, _ := json.Marshal(defs)
	c := &BlockCatalog{}
	c.fill(defs, raw)
	return c
}

// LoadBlocks reads blocks.json. The file may not redefine any variant: it
// publishes the compiled-in catalog and is rejected when the two drift.
func LoadBlocks(path string) (*BlockCatalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := validateBlocksJSON(raw); err != nil {
		return nil, fmt.Errorf("blocks.json: %w", err)
	}

	var defs []BlockDef
	if err := json.Unmarshal(raw, &defs); err != nil {
		return nil, fmt.Errorf("blocks.json: %w", err)
	}
	seen := map[string]bool{}
	for _, d := range defs {
		v, ok := ParseBlockVariant(d.ID)
		if !ok || v.String() != d.ID {
			return nil, fmt.Errorf("blocks.json: unknown block id %q", d.ID)
		}
		if seen[d.ID] {
			return nil, fmt.Errorf("blocks.json: duplicate block id %q", d.ID)
		}
		seen[d.ID] = true
		if want := Def(v); d != want {
			return nil, fmt.Errorf("blocks.json: %s does not match built-in definition %+v", d.ID, want)
		}
	}
	if !seen[Empty.String()] {
		return nil, fmt.Errorf("blocks.json: missing %s", Empty)
	}
	if len(seen) != NumVariants {
		return nil, fmt.Errorf("blocks.json: got %d blocks want %d", len(seen), NumVariants)
	}

	c := &BlockCatalog{}
	c.fill(defs, raw)
	return c, nil
}

func (c *BlockCatalog) fill(defs []BlockDef, raw []byte) {
	c.DefsDigest = sha256Hex(raw)
	c.Defs = make(map[string]BlockDef, len(defs))
	for _, d := range defs {
		c.Defs[d.ID] = d
	}
	// Palette order is the variant order, so palette ids equal BlockVariant values.
	c.Palette = make([]string, 0, NumVariants)
	c.Index = make(map[string]BlockVariant, NumVariants)
	for _, v := range Variants() {
		c.Palette = append(c.Palette, v.String())
		c.Index[v.String()] = v
	}
	palJSON, _ := json.Marshal(c.Palette)
	c.PaletteDigest = sha256Hex(palJSON)
}

// SortedDefs returns the definitions in palette order.
func (c *BlockCatalog) SortedDefs() []BlockDef {
	out := make([]BlockDef, 0, len(c.Palette))
	for _, id := range c.Palette {
		if d, ok := c.Defs[id]; ok {
			out = append(out, d)
		}
	}
	return out
}

func validateBlocksJSON(raw []byte) error {
	schema, err := jsonschema.CompileString("blocks.schema.json", blocksSchemaJSON)
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return err
	}
	return schema.Validate(doc)
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
