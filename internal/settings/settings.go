// Package settings implements the AnalyzeSettings document the engine
// receives as opaque JSON: project and template files are parsed and
// validated here, but this package is not their format owner.
package settings

import (
	"encoding/json"
	"fmt"

	"github.com/imagec/engine/internal/object"
	"github.com/imagec/engine/internal/plane"
)

// StackHandling selects whether a dimension is expanded per-index or
// pinned to one declared index.
type StackHandling string

const (
	EachOne StackHandling = "EACH_ONE"
	ExactOne StackHandling = "EXACT_ONE"
)

// TStackRange is the inclusive frame range a run processes.
type TStackRange struct {
	StartFrame int `json:"startFrame"`
	EndFrame   int `json:"endFrame"`
}

// TileSettings is the configured tile shape.
type TileSettings struct {
	TileWidth  int `json:"tileWidth"`
	TileHeight int `json:"tileHeight"`
}

// ImageSetup is the imageSetup block.
type ImageSetup struct {
	ZStackHandling    StackHandling `json:"zStackHandling"`
	TStackHandling    StackHandling `json:"tStackHandling"`
	TStackSettings    TStackRange   `json:"tStackSettings"`
	ImageTileSettings TileSettings  `json:"imageTileSettings"`
}

// PipelineSetupGlobal is the top-level pipelineSetup block
// (distinct from the per-Pipeline PipelineSetup below).
type PipelineSetupGlobal struct {
	RealSizesUnit       string  `json:"realSizesUnit"`
	PixelSizeFallbackUm float64 `json:"pixelSizeFallback"`
}

// ClassDef is one entry in the project's classification set.
type ClassDef struct {
	ClassId             object.Class `json:"classId"`
	Name                string       `json:"name"`
	Color               string       `json:"color"`
	DefaultMeasurements []string     `json:"defaultMeasurements"`
}

// Classification is the project's classification set, looked up both
// by id and by name.
type Classification struct {
	Classes []ClassDef `json:"classes"`

	byId   map[object.Class]ClassDef
	byName map[string]ClassDef
}

// Index builds the two-way lookup tables. Must be called once after
// unmarshalling (or by UnmarshalJSON, which calls it automatically).
func (c *Classification) Index() {
	c.byId = make(map[object.Class]ClassDef, len(c.Classes))
	c.byName = make(map[string]ClassDef, len(c.Classes))
	for _, cd := range c.Classes {
		c.byId[cd.ClassId] = cd
		c.byName[cd.Name] = cd
	}
}

// ByID looks up a class by its numeric id.
func (c *Classification) ByID(id object.Class) (ClassDef, bool) {
	cd, ok := c.byId[id]
	return cd, ok
}

// ByName looks up a class by its declared name.
func (c *Classification) ByName(name string) (ClassDef, bool) {
	cd, ok := c.byName[name]
	return cd, ok
}

// UnmarshalJSON indexes the classification set as part of decoding.
func (c *Classification) UnmarshalJSON(data []byte) error {
	type alias Classification
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*c = Classification(a)
	c.Index()
	return nil
}

// ProjectSettings is the projectSettings block.
type ProjectSettings struct {
	Plate            string         `json:"plate"`
	Address          string         `json:"address"`
	Experiment       string         `json:"experiment"`
	Classification   Classification `json:"classification"`
	WorkingDirectory string         `json:"workingDirectory"`
}

// PipelineMeta is the Pipeline.meta block.
type PipelineMeta struct {
	UID      string   `json:"uid"`
	Name     string   `json:"name"`
	Disabled bool     `json:"disabled"`
	Locked   bool     `json:"locked"`
	Notes    string   `json:"notes"`
	History  []string `json:"history"`
}

// PipelineSetup is one Pipeline's pipelineSetup block.
type PipelineSetup struct {
	CStackIndex    int                  `json:"cStackIndex"` // -1 == channel-agnostic
	ZProjection    plane.ProjectionKind `json:"zProjection"`
	ZStackHandling StackHandling        `json:"zStackHandling"`
	ZStackIndex    int                  `json:"zStackIndex"`
	TStackHandling StackHandling        `json:"tStackHandling"`
	TStackIndex    int                  `json:"tStackIndex"`
	DefaultClassId object.Class         `json:"defaultClassId"`

	// Connectivity selects 4- or 8-neighbor adjacency for this
	// pipeline's connected-component labeling. Omitted == Connectivity8
	// (object.Connectivity's zero value), the engine's historical default.
	Connectivity object.Connectivity `json:"connectivity"`
}

// CommandSpec is one opaque pipeline step: a command name plus its
// raw JSON parameters, resolved against the command registry at
// execution time (internal/commands.Registry).
type CommandSpec struct {
	Command string          `json:"command"`
	Params  json.RawMessage `json:"params"`
}

// Pipeline is one ordered command chain with its declared channel
// context.
type Pipeline struct {
	Meta          PipelineMeta  `json:"meta"`
	PipelineSetup PipelineSetup `json:"pipelineSetup"`
	PipelineSteps []CommandSpec `json:"pipelineSteps"`
}

// AnalyzeSettings is the top-level settings document.
type AnalyzeSettings struct {
	ImageSetup        ImageSetup          `json:"imageSetup"`
	PipelineSetup     PipelineSetupGlobal `json:"pipelineSetup"`
	ProjectSettings   ProjectSettings     `json:"projectSettings"`
	Pipelines         []Pipeline          `json:"pipelines"`
	ResultsSettings   json.RawMessage     `json:"resultsSettings"` // opaque: owned by the exporter, out of scope here
}

// Parse decodes raw JSON into an AnalyzeSettings. Accepts both a full
// .icproj document and a single-pipeline .ictempl document, treating
// templates as a strict subset of projects: one pipelines[] entry,
// everything else defaulted.
func Parse(raw []byte) (*AnalyzeSettings, error) {
	var s AnalyzeSettings
	if err := json.Unmarshal(raw, &s); err == nil && (len(s.Pipelines) > 0 || s.ProjectSettings.Plate != "") {
		return &s, nil
	}

	var tmpl Pipeline
	if err := json.Unmarshal(raw, &tmpl); err != nil {
		return nil, fmt.Errorf("settings: not a valid project or template document: %w", err)
	}
	return &AnalyzeSettings{Pipelines: []Pipeline{tmpl}}, nil
}
