package repository

import (
	"context"
	"fmt"

	"github.com/VictorVasquezZT2005/Prestamos/internal/folio"
	"github.com/VictorVasquezZT2005/Prestamos/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// contadorVales names the folios row used by folio.ModoContador.
const contadorVales = "vales"

// ordenFolioDesc sorts digit strings numerically ("100000" after "99999").
const ordenFolioDesc = "LENGTH(numero_formulario) DESC, numero_formulario DESC"

type ValeRepository interface {
	// Create assigns the next folio and inserts the voucher with its items
	// in a single transaction.
	Create(ctx context.Context, v *model.Vale) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Vale, error)
	// List returns every voucher, highest folio first.
	List(ctx context.Context) ([]model.Vale, error)
	// ListByFecha returns every voucher, newest first.
	ListByFecha(ctx context.Context) ([]model.Vale, error)
	// Update replaces every editable field and the whole item list.
	Update(ctx context.Context, v *model.Vale) error
	Delete(ctx context.Context, id uuid.UUID) error
	// Import stores legacy vouchers verbatim, keeping their folios.
	Import(ctx context.Context, vales []model.Vale) error
}

type valeRepo struct {
	db        *gorm.DB
	modoFolio string
}

// NewValeRepository returns a repository allocating folios with modoFolio
// (folio.ModoContador or folio.ModoLectura).
func NewValeRepository(db *gorm.DB, modoFolio string) ValeRepository {
	return &valeRepo{db: db, modoFolio: modoFolio}
}

func preloadInsumos(db *gorm.DB) *gorm.DB {
	return db.Order("posicion ASC")
}

func (r *valeRepo) Create(ctx context.Context, v *model.Vale) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		numero, err := r.asignarFolio(tx)
		if err != nil {
			return fmt.Errorf("asignar folio: %w", err)
		}
		v.NumeroFormulario = numero
		prepararInsumos(v)
		return translate(tx.Create(v).Error)
	})
}

// asignarFolio runs inside the insert transaction.
func (r *valeRepo) asignarFolio(tx *gorm.DB) (string, error) {
	if r.modoFolio == folio.ModoLectura {
		// Read-then-increment without a lock: two concurrent writers can
		// compute the same folio.
		var ultimos []string
		err := tx.Model(&model.Vale{}).Order(ordenFolioDesc).Limit(1).Pluck("numero_formulario", &ultimos).Error
		if err != nil {
			return "", err
		}
		if len(ultimos) == 0 {
			return folio.Siguiente("")
		}
		return folio.Siguiente(ultimos[0])
	}

	var contador model.ContadorFolio
	res := tx.Raw(`UPDATE folios SET ultimo = ultimo + 1, updated_at = NOW()
		WHERE nombre = ? RETURNING nombre, ultimo, updated_at`, contadorVales).Scan(&contador)
	if res.Error != nil {
		return "", res.Error
	}
	if res.RowsAffected == 0 {
		// First allocation: seed the counter from the data already stored.
		err := tx.Raw(`INSERT INTO folios (nombre, ultimo, updated_at)
			SELECT ?, COALESCE(MAX(numero_formulario::bigint), 0) + 1, NOW() FROM vales
			ON CONFLICT (nombre) DO UPDATE SET ultimo = folios.ultimo + 1, updated_at = NOW()
			RETURNING nombre, ultimo, updated_at`, contadorVales).Scan(&contador).Error
		if err != nil {
			return "", err
		}
	}
	return folio.Formatear(contador.Ultimo), nil
}

func (r *valeRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Vale, error) {
	var v model.Vale
	err := r.db.WithContext(ctx).Preload("Insumos", preloadInsumos).First(&v, "id = ?", id).Error
	if err != nil {
		return nil, translate(err)
	}
	return &v, nil
}

func (r *valeRepo) List(ctx context.Context) ([]model.Vale, error) {
	var vales []model.Vale
	err := r.db.WithContext(ctx).
		Preload("Insumos", preloadInsumos).
		Order(ordenFolioDesc).
		Find(&vales).Error
	return vales, translate(err)
}

func (r *valeRepo) ListByFecha(ctx context.Context) ([]model.Vale, error) {
	var vales []model.Vale
	err := r.db.WithContext(ctx).
		Preload("Insumos", preloadInsumos).
		Order("created_at DESC NULLS LAST").
		Find(&vales).Error
	return vales, translate(err)
}

func (r *valeRepo) Update(ctx context.Context, v *model.Vale) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.Vale{}).Where("id = ?", v.ID).Updates(map[string]any{
			"codigo":          v.Codigo,
			"requisicion":     v.Requisicion,
			"area_origen":     v.AreaOrigen,
			"area_destino":    v.AreaDestino,
			"solicitado_por":  v.SolicitadoPor,
			"habitacion":      v.Habitacion,
			"nombre_paciente": v.NombrePaciente,
			"nombre_entrega":  v.NombreEntrega,
			"nombre_recibe":   v.NombreRecibe,
			"updated_at":      v.ActualizadoEn,
		})
		if res.Error != nil {
			return translate(res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		if err := tx.Where("vale_id = ?", v.ID).Delete(&model.Insumo{}).Error; err != nil {
			return err
		}
		prepararInsumos(v)
		if len(v.Insumos) == 0 {
			return nil
		}
		return tx.Create(&v.Insumos).Error
	})
}

func (r *valeRepo) Delete(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).Delete(&model.Vale{}, "id = ?", id)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *valeRepo) Import(ctx context.Context, vales []model.Vale) error {
	if len(vales) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range vales {
			prepararInsumos(&vales[i])
		}
		if err := tx.CreateInBatches(vales, 200).Error; err != nil {
			return translate(err)
		}
		// Keep the counter ahead of every imported folio.
		return tx.Exec(`INSERT INTO folios (nombre, ultimo, updated_at)
			SELECT ?, COALESCE(MAX(numero_formulario::bigint), 0), NOW() FROM vales
			ON CONFLICT (nombre) DO UPDATE
			SET ultimo = GREATEST(folios.ultimo, EXCLUDED.ultimo), updated_at = NOW()`, contadorVales).Error
	})
}

// prepararInsumos assigns ids, the parent id and positions in list order.
func prepararInsumos(v *model.Vale) {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	for i := range v.Insumos {
		if v.Insumos[i].ID == uuid.Nil {
			v.Insumos[i].ID = uuid.New()
		}
		v.Insumos[i].ValeID = v.ID
		v.Insumos[i].Posicion = i
	}
}
