package storage

import (
	"context"

	"fintrack/internal/core"
)

const categoryColumns = "id, name, color, type, created_at"

func scanCategory(s scanner) (core.Category, error) {
	var (
		c   core.Category
		typ string
	)
	if err := s.Scan(&c.ID, &c.Name, &c.Color, &typ, &c.CreatedAt); err != nil {
		return core.Category{}, err
	}
	c.Type = core.TransactionType(typ)
	c.CreatedAt = c.CreatedAt.UTC()
	return c, nil
}

func (r *Repository) GetCategory(ctx context.Context, id int64) (core.Category, error) {
	c, err := scanCategory(r.queryRow(ctx, "SELECT "+categoryColumns+" FROM categories WHERE id = ?", id))
	if err != nil {
		return core.Category{}, wrap("get category", err)
	}
	return c, nil
}

func (r *Repository) ListCategories(ctx context.Context) ([]core.Category, error) {
	rows, err := r.query(ctx, "SELECT "+categoryColumns+" FROM categories ORDER BY id")
	if err != nil {
		return nil, wrap("list categories", err)
	}
	defer rows.Close()

	out := make([]core.Category, 0)
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, wrap("scan category", err)
		}
		out = append(out, c)
	}
	return out, wrap("list categories", rows.Err())
}

func (r *Repository) CreateCategory(ctx context.Context, c core.Category) (core.Category, error) {
	c.CreatedAt = r.stamp()
	id, err := r.insert(ctx, "create category",
		"INSERT INTO categories (name, color, type, created_at) VALUES (?, ?, ?, ?)",
		c.Name, c.Color, string(c.Type), c.CreatedAt)
	if err != nil {
		return core.Category{}, err
	}
	c.ID = id
	return c, nil
}

func (r *Repository) UpdateCategory(ctx context.Context, id int64, p core.CategoryPatch) (core.Category, error) {
	var set setList
	if p.Name.Set {
		set.add("name", p.Name.Value)
	}
	if p.Color.Set {
		set.add("color", p.Color.Value)
	}
	if p.Type.Set {
		set.add("type", string(p.Type.Value))
	}
	if err := r.update(ctx, "update category", "categories", id, &set); err != nil {
		return core.Category{}, err
	}
	return r.GetCategory(ctx, id)
}

func (r *Repository) DeleteCategory(ctx context.Context, id int64) (bool, error) {
	return r.deleteByID(ctx, "delete category", "categories", id)
}
