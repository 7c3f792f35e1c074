//go:build integration

package repositories

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/corebridge/corebridge/pkg/apperrors"
	"github.com/corebridge/corebridge/pkg/models"
	"github.com/corebridge/corebridge/pkg/testhelpers"
)

// registryTestContext holds shared dependencies for registry and join store
// integration tests.
type registryTestContext struct {
	t             *testing.T
	db            *testhelpers.GatewayDB
	modules       LogicModuleRepository
	relationships RelationshipRepository
	joins         JoinRecordRepository
}

func setupRegistryTest(t *testing.T) *registryTestContext {
	db := testhelpers.GetGatewayDB(t)
	return &registryTestContext{
		t:             t,
		db:            db,
		modules:       NewLogicModuleRepository(db.DB),
		relationships: NewRelationshipRepository(db.DB),
		joins:         NewJoinRecordRepository(db.DB),
	}
}

// cleanup removes everything seeded under the given module endpoint names.
// Models, relationships, and join records cascade from the module rows.
func (tc *registryTestContext) cleanup(endpointNames ...string) {
	tc.t.Helper()
	ctx := context.Background()
	for _, name := range endpointNames {
		_, _ = tc.db.DB.Exec(ctx, "DELETE FROM gateway_logic_modules WHERE endpoint_name = $1", name)
	}
}

// registerModule seeds a module with one model and returns the model row.
func (tc *registryTestContext) registerModule(ctx context.Context, endpointName, model, modelEndpoint, lookupField string) *models.LogicModuleModel {
	tc.t.Helper()

	lm := &models.LogicModule{
		Name:         endpointName + " service",
		EndpointName: endpointName,
		Endpoint:     "http://" + endpointName + ":8080",
	}
	if err := tc.modules.Upsert(ctx, lm); err != nil {
		tc.t.Fatalf("failed to upsert module %q: %v", endpointName, err)
	}

	lmm := &models.LogicModuleModel{
		LogicModuleEndpointName: endpointName,
		Model:                   model,
		Endpoint:                modelEndpoint,
		LookupFieldName:         lookupField,
	}
	if err := tc.modules.UpsertModel(ctx, lmm); err != nil {
		tc.t.Fatalf("failed to upsert model %q: %v", model, err)
	}
	return lmm
}

func TestLogicModuleRepository_UpsertIsIdempotent(t *testing.T) {
	tc := setupRegistryTest(t)
	defer tc.cleanup("it-products")
	ctx := context.Background()

	lm := &models.LogicModule{
		Name:         "Products",
		EndpointName: "it-products",
		Endpoint:     "http://products:8080",
	}
	if err := tc.modules.Upsert(ctx, lm); err != nil {
		t.Fatalf("first upsert failed: %v", err)
	}
	firstID := lm.ID

	lm2 := &models.LogicModule{
		Name:         "Products Renamed",
		EndpointName: "it-products",
		Endpoint:     "http://products:9090",
		DocsEndpoint: "http://products:9090/docs/swagger.json",
	}
	if err := tc.modules.Upsert(ctx, lm2); err != nil {
		t.Fatalf("second upsert failed: %v", err)
	}

	if lm2.ID != firstID {
		t.Errorf("expected upsert to keep id %s, got %s", firstID, lm2.ID)
	}

	got, err := tc.modules.GetByEndpointName(ctx, "it-products")
	if err != nil {
		t.Fatalf("GetByEndpointName failed: %v", err)
	}
	if got.Name != "Products Renamed" || got.Endpoint != "http://products:9090" {
		t.Errorf("mutable columns not refreshed: %+v", got)
	}
	if got.UpdatedAt == nil {
		t.Error("expected updated_at to be set after conflicting upsert")
	}
}

func TestLogicModuleRepository_ModelLookups(t *testing.T) {
	tc := setupRegistryTest(t)
	defer tc.cleanup("it-crm")
	ctx := context.Background()

	seeded := tc.registerModule(ctx, "it-crm", "Contact", "/contacts/", "contact_uuid")

	byName, err := tc.modules.GetModel(ctx, "it-crm", "Contact")
	if err != nil {
		t.Fatalf("GetModel failed: %v", err)
	}
	if byName.ID != seeded.ID {
		t.Errorf("GetModel returned wrong row: %+v", byName)
	}

	byEndpoint, err := tc.modules.GetModelByEndpoint(ctx, "it-crm", "/contacts/")
	if err != nil {
		t.Fatalf("GetModelByEndpoint failed: %v", err)
	}
	if byEndpoint.ID != seeded.ID {
		t.Errorf("GetModelByEndpoint returned wrong row: %+v", byEndpoint)
	}

	if _, err := tc.modules.GetModel(ctx, "it-crm", "Ghost"); !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown model, got %v", err)
	}

	listed, err := tc.modules.ListModels(ctx, "it-crm")
	if err != nil {
		t.Fatalf("ListModels failed: %v", err)
	}
	if len(listed) != 1 {
		t.Errorf("expected 1 model, got %d", len(listed))
	}
}

func TestLogicModuleRepository_DeleteCascadesToModels(t *testing.T) {
	tc := setupRegistryTest(t)
	ctx := context.Background()

	tc.registerModule(ctx, "it-ephemeral", "Widget", "/widgets/", "widget_uuid")

	if err := tc.modules.Delete(ctx, "it-ephemeral"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := tc.modules.GetModel(ctx, "it-ephemeral", "Widget"); !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("expected models to cascade with the module, got %v", err)
	}

	if err := tc.modules.Delete(ctx, "it-ephemeral"); !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("expected ErrNotFound for double delete, got %v", err)
	}
}

func TestRelationshipRepository_EdgeOrientation(t *testing.T) {
	tc := setupRegistryTest(t)
	defer tc.cleanup("it-shop")
	ctx := context.Background()

	product := tc.registerModule(ctx, "it-shop", "Product", "/products/", "product_uuid")

	team := &models.LogicModuleModel{
		LogicModuleEndpointName: "it-shop",
		Model:                   "ProductTeam",
		Endpoint:                "/productteams/",
		LookupFieldName:         "product_team_uuid",
	}
	if err := tc.modules.UpsertModel(ctx, team); err != nil {
		t.Fatalf("failed to upsert related model: %v", err)
	}

	rel := &models.Relationship{
		OriginModelID:  product.ID,
		RelatedModelID: team.ID,
		Key:            "it_product_team_relationship",
		FKFieldName:    "product_team_uuid",
	}
	if err := tc.relationships.Upsert(ctx, rel); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	firstID := rel.ID

	// Re-upserting the same tuple keeps the canonical row.
	again := &models.Relationship{
		OriginModelID:  product.ID,
		RelatedModelID: team.ID,
		Key:            "it_product_team_relationship",
		FKFieldName:    "team_uuid",
	}
	if err := tc.relationships.Upsert(ctx, again); err != nil {
		t.Fatalf("second Upsert failed: %v", err)
	}
	if again.ID != firstID {
		t.Errorf("expected upsert to keep id %s, got %s", firstID, again.ID)
	}

	edge, err := tc.relationships.FindByKey(ctx, "it_product_team_relationship")
	if err != nil {
		t.Fatalf("FindByKey failed: %v", err)
	}
	if !edge.IsForwardLookup {
		t.Error("FindByKey must return the forward orientation")
	}
	if edge.OriginModel.Model != "Product" || edge.RelatedModel.Model != "ProductTeam" {
		t.Errorf("endpoint models not resolved: %+v", edge)
	}

	forward, err := tc.relationships.RelationshipsFor(ctx, product.ID)
	if err != nil {
		t.Fatalf("RelationshipsFor(origin) failed: %v", err)
	}
	if len(forward) != 1 || !forward[0].IsForwardLookup {
		t.Errorf("expected one forward edge for the origin model, got %+v", forward)
	}

	reverse, err := tc.relationships.RelationshipsFor(ctx, team.ID)
	if err != nil {
		t.Fatalf("RelationshipsFor(related) failed: %v", err)
	}
	if len(reverse) != 1 || reverse[0].IsForwardLookup {
		t.Errorf("expected one reverse edge for the related model, got %+v", reverse)
	}
}

func TestJoinRecordRepository_MixedPKKinds(t *testing.T) {
	tc := setupRegistryTest(t)
	defer tc.cleanup("it-joins")
	ctx := context.Background()

	edge := tc.seedRelationship(ctx, "it-joins", "it_joins_relationship")
	relID := edge.Relationship.ID

	originUUID := uuid.NewString()

	// UUID on one side, integer id on the other.
	record, err := tc.joins.Insert(ctx, relID, originUUID, "42", nil)
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if record.RecordUUID == nil || record.RecordID != nil {
		t.Errorf("origin pk should land in record_uuid: %+v", record)
	}
	if record.RelatedRecordID == nil || *record.RelatedRecordID != 42 {
		t.Errorf("related pk should land in related_record_id: %+v", record)
	}

	// Duplicate tuple collides with the unique index.
	if _, err := tc.joins.Insert(ctx, relID, originUUID, "42", nil); !errors.Is(err, apperrors.ErrConflict) {
		t.Errorf("expected ErrConflict for duplicate tuple, got %v", err)
	}

	exists, err := tc.joins.Exists(ctx, "it_joins_relationship", originUUID, "42")
	if err != nil {
		t.Fatalf("Exists failed: %v", err)
	}
	if !exists {
		t.Error("expected tuple to exist")
	}

	related, err := tc.joins.FindRelated(ctx, relID, originUUID, true, nil)
	if err != nil {
		t.Fatalf("FindRelated failed: %v", err)
	}
	if len(related) != 1 || related[0] != "42" {
		t.Errorf("expected [42], got %v", related)
	}

	// Reverse lookup matches the related side and returns the origin.
	origins, err := tc.joins.FindRelated(ctx, relID, "42", false, nil)
	if err != nil {
		t.Fatalf("reverse FindRelated failed: %v", err)
	}
	if len(origins) != 1 || origins[0] != originUUID {
		t.Errorf("expected [%s], got %v", originUUID, origins)
	}
}

func TestJoinRecordRepository_OrganizationScoping(t *testing.T) {
	tc := setupRegistryTest(t)
	defer tc.cleanup("it-tenancy")
	ctx := context.Background()

	edge := tc.seedRelationship(ctx, "it-tenancy", "it_tenancy_relationship")
	relID := edge.Relationship.ID

	org := uuid.New()
	otherOrg := uuid.New()
	pk := uuid.NewString()

	if _, err := tc.joins.Insert(ctx, relID, pk, "1", nil); err != nil {
		t.Fatalf("global insert failed: %v", err)
	}
	if _, err := tc.joins.Insert(ctx, relID, pk, "2", &org); err != nil {
		t.Fatalf("tenant insert failed: %v", err)
	}
	if _, err := tc.joins.Insert(ctx, relID, pk, "3", &otherOrg); err != nil {
		t.Fatalf("other tenant insert failed: %v", err)
	}

	// Tenant reads see their own joins plus global ones.
	scoped, err := tc.joins.FindRelated(ctx, relID, pk, true, &org)
	if err != nil {
		t.Fatalf("scoped FindRelated failed: %v", err)
	}
	if len(scoped) != 2 {
		t.Errorf("expected global + own tenant joins, got %v", scoped)
	}

	// Without tenant context only global joins are visible.
	global, err := tc.joins.FindRelated(ctx, relID, pk, true, nil)
	if err != nil {
		t.Fatalf("global FindRelated failed: %v", err)
	}
	if len(global) != 1 || global[0] != "1" {
		t.Errorf("expected only the global join, got %v", global)
	}
}

func TestJoinRecordRepository_Deletes(t *testing.T) {
	tc := setupRegistryTest(t)
	defer tc.cleanup("it-unlink")
	ctx := context.Background()

	edge := tc.seedRelationship(ctx, "it-unlink", "it_unlink_relationship")
	relID := edge.Relationship.ID

	pk := uuid.NewString()
	oldPK := uuid.NewString()
	newPK := uuid.NewString()

	if _, err := tc.joins.Insert(ctx, relID, pk, oldPK, nil); err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	if _, err := tc.joins.Insert(ctx, relID, pk, newPK, nil); err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	// DeleteMatching removes the pk<->oldPK pair in either direction.
	if err := tc.joins.DeleteMatching(ctx, pk, oldPK); err != nil {
		t.Fatalf("DeleteMatching failed: %v", err)
	}
	remaining, err := tc.joins.FindRelated(ctx, relID, pk, true, nil)
	if err != nil {
		t.Fatalf("FindRelated failed: %v", err)
	}
	if len(remaining) != 1 || remaining[0] != newPK {
		t.Errorf("expected only %s to remain, got %v", newPK, remaining)
	}

	// DeleteTouching clears everything referencing pk on either side.
	if err := tc.joins.DeleteTouching(ctx, pk); err != nil {
		t.Fatalf("DeleteTouching failed: %v", err)
	}
	remaining, err = tc.joins.FindRelated(ctx, relID, pk, true, nil)
	if err != nil {
		t.Fatalf("FindRelated failed: %v", err)
	}
	if len(remaining) != 0 {
		t.Errorf("expected no joins after DeleteTouching, got %v", remaining)
	}
}

// seedRelationship registers a module with two models and one relationship,
// returning the forward edge.
func (tc *registryTestContext) seedRelationship(ctx context.Context, endpointName, key string) *models.RelationshipEdge {
	tc.t.Helper()

	origin := tc.registerModule(ctx, endpointName, "Origin", "/origins/", "origin_uuid")
	related := &models.LogicModuleModel{
		LogicModuleEndpointName: endpointName,
		Model:                   "Related",
		Endpoint:                "/relateds/",
		LookupFieldName:         "related_uuid",
	}
	if err := tc.modules.UpsertModel(ctx, related); err != nil {
		tc.t.Fatalf("failed to upsert related model: %v", err)
	}

	rel := &models.Relationship{
		OriginModelID:  origin.ID,
		RelatedModelID: related.ID,
		Key:            key,
	}
	if err := tc.relationships.Upsert(ctx, rel); err != nil {
		tc.t.Fatalf("failed to upsert relationship: %v", err)
	}

	edge, err := tc.relationships.FindByKey(ctx, key)
	if err != nil {
		tc.t.Fatalf("failed to resolve edge: %v", err)
	}
	return edge
}
