// Package seed bulk-loads registry entries and join records from a YAML
// file, for bootstrapping a gateway or importing an existing deployment's
// relationship graph.
package seed

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/jinzhu/inflection"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/corebridge/corebridge/pkg/datamesh"
	"github.com/corebridge/corebridge/pkg/models"
	"github.com/corebridge/corebridge/pkg/repositories"
)

// File is the root of a seed document.
type File struct {
	LogicModules  []LogicModuleSeed  `yaml:"logic_modules"`
	Relationships []RelationshipSeed `yaml:"relationships"`
	JoinRecords   []JoinRecordSeed   `yaml:"join_records"`
}

// LogicModuleSeed registers a service and its models.
type LogicModuleSeed struct {
	Name         string      `yaml:"name"`
	EndpointName string      `yaml:"endpoint_name"`
	Endpoint     string      `yaml:"endpoint"`
	DocsEndpoint string      `yaml:"docs_endpoint"`
	IsLocal      bool        `yaml:"is_local"`
	Models       []ModelSeed `yaml:"models"`
}

// ModelSeed registers a resource model. Endpoint defaults to the pluralised
// lowercase model name and LookupFieldName to "<model>_uuid".
type ModelSeed struct {
	Model           string `yaml:"model"`
	Endpoint        string `yaml:"endpoint"`
	LookupFieldName string `yaml:"lookup_field_name"`
	IsLocal         bool   `yaml:"is_local"`
}

// RelationshipSeed registers a directed relationship between two models.
type RelationshipSeed struct {
	Origin      ModelRef `yaml:"origin"`
	Related     ModelRef `yaml:"related"`
	Key         string   `yaml:"key"`
	FKFieldName string   `yaml:"fk_field_name"`
}

// ModelRef names a model by service and model name.
type ModelRef struct {
	Service string `yaml:"service"`
	Model   string `yaml:"model"`
}

// JoinRecordSeed imports one join tuple. OrganizationUUID is optional;
// absent means a global join visible to every tenant.
type JoinRecordSeed struct {
	RelationshipKey  string `yaml:"relationship_key"`
	OriginPK         string `yaml:"origin_pk"`
	RelatedPK        string `yaml:"related_pk"`
	OrganizationUUID string `yaml:"organization_uuid"`
}

// Seeder applies seed files against the registry and join store.
type Seeder struct {
	modules       repositories.LogicModuleRepository
	relationships repositories.RelationshipRepository
	joins         datamesh.JoinService
	logger        *zap.Logger
}

// NewSeeder creates a Seeder.
func NewSeeder(modules repositories.LogicModuleRepository, relationships repositories.RelationshipRepository, joins datamesh.JoinService, logger *zap.Logger) *Seeder {
	return &Seeder{
		modules:       modules,
		relationships: relationships,
		joins:         joins,
		logger:        logger.Named("seed"),
	}
}

// LoadFile reads and applies a YAML seed file. Every operation is an
// idempotent upsert, so re-running a seed is safe.
func (s *Seeder) LoadFile(ctx context.Context, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read seed file: %w", err)
	}

	var file File
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return fmt.Errorf("failed to parse seed file: %w", err)
	}

	return s.Apply(ctx, &file)
}

// Apply upserts the seed contents in dependency order: modules, models,
// relationships, then join records.
func (s *Seeder) Apply(ctx context.Context, file *File) error {
	for i := range file.LogicModules {
		if err := s.applyModule(ctx, &file.LogicModules[i]); err != nil {
			return err
		}
	}
	for i := range file.Relationships {
		if err := s.applyRelationship(ctx, &file.Relationships[i]); err != nil {
			return err
		}
	}
	for i := range file.JoinRecords {
		if err := s.applyJoinRecord(ctx, &file.JoinRecords[i]); err != nil {
			return err
		}
	}

	s.logger.Info("seed applied",
		zap.Int("logic_modules", len(file.LogicModules)),
		zap.Int("relationships", len(file.Relationships)),
		zap.Int("join_records", len(file.JoinRecords)))

	return nil
}

func (s *Seeder) applyModule(ctx context.Context, seed *LogicModuleSeed) error {
	if seed.EndpointName == "" {
		return fmt.Errorf("logic module %q is missing endpoint_name", seed.Name)
	}

	lm := &models.LogicModule{
		Name:         seed.Name,
		EndpointName: seed.EndpointName,
		Endpoint:     strings.TrimSuffix(seed.Endpoint, "/"),
		DocsEndpoint: seed.DocsEndpoint,
		IsLocal:      seed.IsLocal,
	}
	if err := s.modules.Upsert(ctx, lm); err != nil {
		return fmt.Errorf("failed to seed module %q: %w", seed.EndpointName, err)
	}

	for _, m := range seed.Models {
		lmm := &models.LogicModuleModel{
			LogicModuleEndpointName: seed.EndpointName,
			Model:                   m.Model,
			Endpoint:                modelEndpoint(m),
			LookupFieldName:         lookupFieldName(m),
			IsLocal:                 m.IsLocal || seed.IsLocal,
		}
		if err := s.modules.UpsertModel(ctx, lmm); err != nil {
			return fmt.Errorf("failed to seed model %q of %q: %w", m.Model, seed.EndpointName, err)
		}
	}

	return nil
}

func (s *Seeder) applyRelationship(ctx context.Context, seed *RelationshipSeed) error {
	if seed.Key == "" {
		return fmt.Errorf("relationship %s -> %s is missing key", seed.Origin.Model, seed.Related.Model)
	}

	origin, err := s.modules.GetModel(ctx, seed.Origin.Service, seed.Origin.Model)
	if err != nil {
		return fmt.Errorf("failed to resolve origin of %q: %w", seed.Key, err)
	}
	related, err := s.modules.GetModel(ctx, seed.Related.Service, seed.Related.Model)
	if err != nil {
		return fmt.Errorf("failed to resolve related side of %q: %w", seed.Key, err)
	}

	rel := &models.Relationship{
		OriginModelID:  origin.ID,
		RelatedModelID: related.ID,
		Key:            seed.Key,
		FKFieldName:    seed.FKFieldName,
	}
	if err := s.relationships.Upsert(ctx, rel); err != nil {
		return fmt.Errorf("failed to seed relationship %q: %w", seed.Key, err)
	}
	return nil
}

func (s *Seeder) applyJoinRecord(ctx context.Context, seed *JoinRecordSeed) error {
	edge, err := s.relationships.FindByKey(ctx, seed.RelationshipKey)
	if err != nil {
		return fmt.Errorf("failed to resolve relationship %q: %w", seed.RelationshipKey, err)
	}

	var org *uuid.UUID
	if seed.OrganizationUUID != "" {
		parsed, err := uuid.Parse(seed.OrganizationUUID)
		if err != nil {
			return fmt.Errorf("invalid organization_uuid in join for %q: %w", seed.RelationshipKey, err)
		}
		org = &parsed
	}

	if err := s.joins.ValidateJoin(ctx, edge, seed.OriginPK, seed.RelatedPK, org); err != nil {
		return fmt.Errorf("failed to seed join for %q: %w", seed.RelationshipKey, err)
	}
	return nil
}

// modelEndpoint defaults to the pluralised lowercase model name:
// "Product" becomes "/products/".
func modelEndpoint(m ModelSeed) string {
	if m.Endpoint != "" {
		return "/" + strings.Trim(m.Endpoint, "/") + "/"
	}
	return "/" + inflection.Plural(strings.ToLower(m.Model)) + "/"
}

// lookupFieldName defaults to "<model>_uuid" in snake case.
func lookupFieldName(m ModelSeed) string {
	if m.LookupFieldName != "" {
		return m.LookupFieldName
	}
	return snakeCase(m.Model) + "_uuid"
}

func snakeCase(name string) string {
	var b strings.Builder
	for i, r := range name {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(r + ('a' - 'A'))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
