package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	mastersdomain "github.com/maburgos12/pollyanas-dolce-erp/internal/masters/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) mastersdomain.Service {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	err = db.AutoMigrate(&mastersdomain.Branch{}, &mastersdomain.Recipe{})
	require.NoError(t, err)

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	return NewService(ServiceParam{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
	})
}

func TestMasters_CreateAndResolve(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	_, err := svc.CreateBranch(ctx, mastersdomain.CreateBranchRequest{Code: "SUC-CENTRO", Name: "Sucursal Centro"})
	require.NoError(t, err)

	recipe, err := svc.CreateRecipe(ctx, mastersdomain.CreateRecipeRequest{Code: "R-001", Name: "Concha Vainilla"})
	require.NoError(t, err)
	assert.Equal(t, "concha-vainilla", recipe.Slug)
	assert.Equal(t, "unidad", recipe.Unit)

	res, err := svc.ResolveRecipe(ctx, "CONCHA  vainilla")
	require.NoError(t, err)
	assert.Equal(t, mastersdomain.MatchExact, res.Method)
	assert.Equal(t, recipe.ID, res.ID)

	res, err = svc.ResolveBranch(ctx, "sucursal centro")
	require.NoError(t, err)
	assert.Equal(t, mastersdomain.MatchExact, res.Method)
}

func TestMasters_DuplicateCode(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	_, err := svc.CreateRecipe(ctx, mastersdomain.CreateRecipeRequest{Code: "R-001", Name: "Concha Vainilla"})
	require.NoError(t, err)

	_, err = svc.CreateRecipe(ctx, mastersdomain.CreateRecipeRequest{Code: "R-001", Name: "Otra Concha"})
	assert.ErrorIs(t, err, mastersdomain.ErrDuplicateCode)
}

func TestMasters_ResolveAfterCreateSeesNewRow(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	_, err := svc.CreateRecipe(ctx, mastersdomain.CreateRecipeRequest{Code: "R-001", Name: "Bolillo"})
	require.NoError(t, err)

	// prime the candidate cache
	res, err := svc.ResolveRecipe(ctx, "Bolillo")
	require.NoError(t, err)
	assert.Equal(t, mastersdomain.MatchExact, res.Method)

	// a later create must invalidate the cache
	created, err := svc.CreateRecipe(ctx, mastersdomain.CreateRecipeRequest{Code: "R-002", Name: "Pan de Muerto"})
	require.NoError(t, err)

	res, err = svc.ResolveRecipe(ctx, "pan de muerto")
	require.NoError(t, err)
	assert.Equal(t, mastersdomain.MatchExact, res.Method)
	assert.Equal(t, created.ID, res.ID)
}

// Each candidate cache ages on its own clock: refreshing branches must not
// keep expired recipe candidates alive.
func TestMasters_CandidateCachesExpireIndependently(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	_, err := svc.CreateBranch(ctx, mastersdomain.CreateBranchRequest{Code: "SUC-SUR", Name: "Sucursal Sur"})
	require.NoError(t, err)
	_, err = svc.CreateRecipe(ctx, mastersdomain.CreateRecipeRequest{Code: "R-001", Name: "Concha Vainilla"})
	require.NoError(t, err)

	impl := svc.(*Service)

	// expire both caches and plant a recipe candidate that no longer exists
	impl.mu.Lock()
	impl.branchLoadedAt = time.Now().Add(-2 * candidateTTL)
	impl.recipeCands = []resolved{{id: 1, code: "R-999", name: "Pan Fantasma", key: "pan-fantasma"}}
	impl.recipeLoadedAt = time.Now().Add(-2 * candidateTTL)
	impl.mu.Unlock()

	// refreshing the branch cache must leave the recipe cache expired
	res, err := svc.ResolveBranch(ctx, "Sucursal Sur")
	require.NoError(t, err)
	assert.Equal(t, mastersdomain.MatchExact, res.Method)

	res, err = svc.ResolveRecipe(ctx, "Pan Fantasma")
	require.NoError(t, err)
	assert.Equal(t, mastersdomain.MatchNone, res.Method)
}

func TestMasters_ListRecipesExcludesPreparationsByDefault(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	_, err := svc.CreateRecipe(ctx, mastersdomain.CreateRecipeRequest{Code: "R-001", Name: "Concha Vainilla"})
	require.NoError(t, err)
	_, err = svc.CreateRecipe(ctx, mastersdomain.CreateRecipeRequest{Code: "P-001", Name: "Masa Madre", IsPreparation: true})
	require.NoError(t, err)

	resp, err := svc.ListRecipes(ctx, mastersdomain.ListRecipesRequest{})
	require.NoError(t, err)
	require.Len(t, resp.Recipes, 1)
	assert.Equal(t, "R-001", resp.Recipes[0].Code)

	resp, err = svc.ListRecipes(ctx, mastersdomain.ListRecipesRequest{IncludePreparations: true})
	require.NoError(t, err)
	assert.Len(t, resp.Recipes, 2)
}

func TestMasters_ResolveNoMatch(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	_, err := svc.CreateRecipe(ctx, mastersdomain.CreateRecipeRequest{Code: "R-001", Name: "Concha Vainilla"})
	require.NoError(t, err)

	res, err := svc.ResolveRecipe(ctx, "Croissant Almendra")
	require.NoError(t, err)
	assert.Equal(t, mastersdomain.MatchNone, res.Method)
	assert.Zero(t, res.ID)
}
