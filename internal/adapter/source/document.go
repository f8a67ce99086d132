package source

import (
	"fmt"
	"strconv"

	"gopkg.in/yaml.v3"

	"shoprag/internal/domain"
)

// knowledgeFile is the YAML layout of a knowledge file. Mapping order is
// preserved so rebuilds render records in file order.
type knowledgeFile struct {
	Pages      orderedMap            `yaml:"pages"`
	Features   []string              `yaml:"features"`
	Policies   orderedMap            `yaml:"policies"`
	Categories []string              `yaml:"categories"`
	Records    []domain.SourceRecord `yaml:"records"`
}

type pair struct {
	Key   string
	Value string
}

type orderedMap []pair

func (m *orderedMap) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: expected a mapping", node.Line)
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		var key, value string
		if err := node.Content[i].Decode(&key); err != nil {
			return err
		}
		if err := node.Content[i+1].Decode(&value); err != nil {
			return fmt.Errorf("line %d: %w", node.Content[i+1].Line, err)
		}
		*m = append(*m, pair{Key: key, Value: value})
	}
	return nil
}

// parseKnowledge decodes one knowledge file into records. Feature keys are
// the feature's position in the file behind featurePrefix.
func parseKnowledge(data []byte, featurePrefix string) ([]domain.SourceRecord, error) {
	var f knowledgeFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse knowledge file: %w", err)
	}

	records := make([]domain.SourceRecord, 0,
		len(f.Pages)+len(f.Features)+len(f.Policies)+len(f.Categories)+len(f.Records))

	for _, p := range f.Pages {
		records = append(records, domain.SourceRecord{Kind: domain.SourcePage, Key: p.Key, Body: p.Value})
	}
	for i, text := range f.Features {
		records = append(records, domain.SourceRecord{
			Kind: domain.SourceFeature,
			Key:  featurePrefix + strconv.Itoa(i),
			Body: text,
		})
	}
	for _, p := range f.Policies {
		records = append(records, domain.SourceRecord{Kind: domain.SourcePolicy, Key: p.Key, Body: p.Value})
	}
	for _, c := range f.Categories {
		records = append(records, domain.SourceRecord{Kind: domain.SourceCategory, Key: c})
	}
	records = append(records, f.Records...)

	return records, nil
}
