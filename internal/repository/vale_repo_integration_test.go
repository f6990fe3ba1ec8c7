//go:build integration

package repository_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/VictorVasquezZT2005/Prestamos/internal/folio"
	"github.com/VictorVasquezZT2005/Prestamos/internal/infra"
	"github.com/VictorVasquezZT2005/Prestamos/internal/model"
	"github.com/VictorVasquezZT2005/Prestamos/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcPostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"gorm.io/gorm"
)

func newDB(t *testing.T) *gorm.DB {
	t.Helper()
	ctx := context.Background()
	pgC, err := tcPostgres.RunContainer(ctx,
		testcontainers.WithImage("postgres:15-alpine"),
		tcPostgres.WithDatabase("vales_test"),
		tcPostgres.WithUsername("vales"),
		tcPostgres.WithPassword("vales"),
		tcPostgres.BasicWaitStrategies(),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pgC.Terminate(ctx) })

	dsn, err := pgC.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	db, err := infra.NewDatabase(dsn)
	require.NoError(t, err)
	require.NoError(t, infra.RunMigrations(dsn, db))
	return db
}

func nuevoVale(paciente string, insumos ...model.Insumo) *model.Vale {
	ahora := time.Now()
	return &model.Vale{Codigo: "HG-1", NombrePaciente: paciente, Insumos: insumos, CreadoEn: &ahora}
}

func TestValeRepo_FoliosPerMode(t *testing.T) {
	db := newDB(t)
	ctx := context.Background()

	for _, modo := range []string{folio.ModoLectura, folio.ModoContador} {
		t.Run(modo, func(t *testing.T) {
			require.NoError(t, db.Exec("TRUNCATE vales CASCADE").Error)
			require.NoError(t, db.Exec("DELETE FROM folios").Error)
			repo := repository.NewValeRepository(db, modo)

			primero := nuevoVale("Juan Perez", model.Insumo{Descripcion: "Gasas", Cantidad: "10", UnidadMedida: "Caja"})
			require.NoError(t, repo.Create(ctx, primero))
			assert.Equal(t, "00001", primero.NumeroFormulario)

			segundo := nuevoVale("Maria")
			require.NoError(t, repo.Create(ctx, segundo))
			assert.Equal(t, "00002", segundo.NumeroFormulario)
		})
	}
}

func TestValeRepo_WidthGrowsPastFiveDigits(t *testing.T) {
	db := newDB(t)
	ctx := context.Background()
	legado := nuevoVale("Legado")
	legado.NumeroFormulario = "99999"
	require.NoError(t, repository.NewValeRepository(db, folio.ModoLectura).Import(ctx, []model.Vale{*legado}))

	// The counter is raised by the import to 99999; lectura then reads 100000.
	for _, modo := range []string{folio.ModoContador, folio.ModoLectura} {
		repo := repository.NewValeRepository(db, modo)
		v := nuevoVale("Nuevo " + modo)
		require.NoError(t, repo.Create(ctx, v))
		assert.Len(t, v.NumeroFormulario, 6, modo)
	}

	lista, err := repository.NewValeRepository(db, folio.ModoContador).List(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, lista)
	assert.Equal(t, "100001", lista[0].NumeroFormulario, "numeric order, not lexical")
}

func TestValeRepo_ContadorHasNoDuplicatesUnderConcurrency(t *testing.T) {
	db := newDB(t)
	repo := repository.NewValeRepository(db, folio.ModoContador)
	ctx := context.Background()

	const n = 20
	var wg sync.WaitGroup
	folios := make(chan string, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v := nuevoVale("Concurrente")
			if assert.NoError(t, repo.Create(ctx, v)) {
				folios <- v.NumeroFormulario
			}
		}()
	}
	wg.Wait()
	close(folios)

	vistos := map[string]bool{}
	for f := range folios {
		assert.False(t, vistos[f], "folio repetido %s", f)
		vistos[f] = true
	}
	assert.Len(t, vistos, n)
}

func TestValeRepo_RoundTripAndUpdate(t *testing.T) {
	db := newDB(t)
	repo := repository.NewValeRepository(db, folio.ModoContador)
	ctx := context.Background()

	v := nuevoVale("Juan Perez",
		model.Insumo{Descripcion: "Gasas", Cantidad: "10", UnidadMedida: "Caja"},
		model.Insumo{Descripcion: "Suero", Cantidad: "2", UnidadMedida: "pza"},
	)
	require.NoError(t, repo.Create(ctx, v))

	leido, err := repo.FindByID(ctx, v.ID)
	require.NoError(t, err)
	require.Len(t, leido.Insumos, 2)
	assert.Equal(t, "Gasas", leido.Insumos[0].Descripcion)
	assert.Equal(t, "Suero", leido.Insumos[1].Descripcion)

	ahora := time.Now()
	leido.Codigo = "HG-2"
	leido.Insumos = []model.Insumo{{Descripcion: "Guantes", Cantidad: "1", UnidadMedida: "caja"}}
	leido.ActualizadoEn = &ahora
	require.NoError(t, repo.Update(ctx, leido))

	final, err := repo.FindByID(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, "HG-2", final.Codigo)
	assert.Equal(t, v.NumeroFormulario, final.NumeroFormulario)
	require.Len(t, final.Insumos, 1)
	assert.Equal(t, "Guantes", final.Insumos[0].Descripcion)

	require.NoError(t, repo.Delete(ctx, v.ID))
	_, err = repo.FindByID(ctx, v.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.ErrorIs(t, repo.Delete(ctx, v.ID), repository.ErrNotFound)
}
