package catalog

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed exercicios.yaml
var raw []byte

type Exercise struct {
	Nome  string `yaml:"nome" json:"nome"`
	Video string `yaml:"video" json:"video"`
}

type Muscle struct {
	Musculo    string     `yaml:"musculo"`
	Exercicios []Exercise `yaml:"exercicios"`
}

// Catalog lists the muscle groups offered when prescribing a treino.
type Catalog struct {
	muscles []Muscle
}

// Default parses the embedded catalog.
func Default() (*Catalog, error) {
	return Parse(raw)
}

func Parse(data []byte) (*Catalog, error) {
	var muscles []Muscle
	if err := yaml.Unmarshal(data, &muscles); err != nil {
		return nil, fmt.Errorf("parse exercise catalog: %w", err)
	}
	for i, m := range muscles {
		if m.Musculo == "" {
			return nil, fmt.Errorf("exercise catalog: entry %d has no musculo", i)
		}
	}
	return &Catalog{muscles: muscles}, nil
}

func (c *Catalog) Muscles() []string {
	names := make([]string, 0, len(c.muscles))
	for _, m := range c.muscles {
		names = append(names, m.Musculo)
	}
	return names
}

func (c *Catalog) Exercises(muscle string) []Exercise {
	for _, m := range c.muscles {
		if strings.EqualFold(m.Musculo, muscle) {
			return m.Exercicios
		}
	}
	return nil
}

// VideoLink finds the video of an exercise in any muscle group.
func (c *Catalog) VideoLink(exercise string) (string, bool) {
	for _, m := range c.muscles {
		for _, e := range m.Exercicios {
			if strings.EqualFold(e.Nome, exercise) {
				return e.Video, true
			}
		}
	}
	return "", false
}
