package sitestore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/signalsfoundry/sitecover/model"
)

const (
	groupColumns = `id, name, COALESCE(window_days, 0)`
	siteColumns  = `id, COALESCE(name, ''), group_id, COALESCE(username, ''), COALESCE(display_name, ''),
		COALESCE(visit_status, 'Not Seen'), seen_date, COALESCE(ST_AsText(geometry), '')`

	listGroupsSQL = `SELECT ` + groupColumns + ` FROM site_groups ORDER BY id`
	groupSQL      = `SELECT ` + groupColumns + ` FROM site_groups WHERE id = $1`
	// Empty arrays disable the username and status conditions.
	filterSitesSQL = `SELECT ` + siteColumns + ` FROM sites
		WHERE group_id = $1
		  AND (cardinality($2::text[]) = 0 OR username = ANY($2))
		  AND (cardinality($3::text[]) = 0 OR COALESCE(visit_status, 'Not Seen') = ANY($3))
		ORDER BY id`
	siteSQL       = `SELECT ` + siteColumns + ` FROM sites WHERE id = $1`
	siteByNameSQL = `SELECT ` + siteColumns + ` FROM sites WHERE username = $1 AND name = $2 ORDER BY id LIMIT 1`

	setVisitSQL = `UPDATE sites SET visit_status = $2, seen_date = $3 WHERE id = $1
		RETURNING ` + siteColumns
	insertVisitSQL  = `INSERT INTO site_history (site_id, status, recorded_date) VALUES ($1, $2, $3)`
	visitHistorySQL = `SELECT h.id, h.site_id, COALESCE(s.name, ''), h.status, h.recorded_date
		FROM site_history h JOIN sites s ON s.id = h.site_id
		WHERE h.site_id = $1 ORDER BY h.recorded_date, h.id`
	deleteHistorySQL = `DELETE FROM site_history WHERE site_id = $1`
	deleteSiteSQL    = `DELETE FROM sites WHERE id = $1 RETURNING ` + siteColumns
)

var _ Writer = (*Postgres)(nil)

// Postgres reads sites from a PostGIS database. Site boundaries are stored
// as geometry and returned as WKT. Changes made through it are published to
// in-process subscribers only.
type Postgres struct {
	notifier

	pool *pgxpool.Pool
}

// OpenPostgres connects and pings the database.
func OpenPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

// Close releases the pool.
func (p *Postgres) Close() { p.pool.Close() }

func (p *Postgres) ListGroups(ctx context.Context) ([]model.Group, error) {
	rows, err := p.pool.Query(ctx, listGroupsSQL)
	if err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	defer rows.Close()

	var out []model.Group
	for rows.Next() {
		g, err := scanGroup(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func (p *Postgres) Group(ctx context.Context, id int64) (model.Group, error) {
	g, err := scanGroup(p.pool.QueryRow(ctx, groupSQL, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Group{}, fmt.Errorf("group %d: %w", id, ErrGroupNotFound)
	}
	return g, err
}

// SitesByGroup returns ErrGroupNotFound when the group does not exist.
func (p *Postgres) SitesByGroup(ctx context.Context, groupID int64) ([]model.Site, error) {
	return p.FilterSites(ctx, groupID, model.SiteFilter{})
}

func (p *Postgres) FilterSites(ctx context.Context, groupID int64, f model.SiteFilter) ([]model.Site, error) {
	if _, err := p.Group(ctx, groupID); err != nil {
		return nil, err
	}
	seen := make([]string, 0, len(f.SeenStatuses))
	for _, st := range f.SeenStatuses {
		seen = append(seen, string(st))
	}
	users := append([]string{}, f.Usernames...)
	rows, err := p.pool.Query(ctx, filterSitesSQL, groupID, users, seen)
	if err != nil {
		return nil, fmt.Errorf("list sites for group %d: %w", groupID, err)
	}
	defer rows.Close()

	var out []model.Site
	for rows.Next() {
		s, err := scanSite(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (p *Postgres) Site(ctx context.Context, id int64) (model.Site, error) {
	s, err := scanSite(p.pool.QueryRow(ctx, siteSQL, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Site{}, fmt.Errorf("site %d: %w", id, ErrSiteNotFound)
	}
	return s, err
}

func (p *Postgres) SiteByName(ctx context.Context, username, siteName string) (model.Site, error) {
	s, err := scanSite(p.pool.QueryRow(ctx, siteByNameSQL, username, siteName))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Site{}, fmt.Errorf("site %q of %q: %w", siteName, username, ErrSiteNotFound)
	}
	return s, err
}

// SetVisit updates the site and appends the history row in one transaction.
func (p *Postgres) SetVisit(ctx context.Context, siteID int64, status model.VisitStatus, at time.Time) (model.Site, error) {
	if !status.Valid() {
		return model.Site{}, fmt.Errorf("%q: %w", status, ErrInvalidStatus)
	}
	at = at.UTC()
	var site model.Site
	err := pgx.BeginFunc(ctx, p.pool, func(tx pgx.Tx) error {
		var err error
		site, err = scanSite(tx.QueryRow(ctx, setVisitSQL, siteID, string(status), at))
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, insertVisitSQL, siteID, string(status), at); err != nil {
			return fmt.Errorf("record visit: %w", err)
		}
		return nil
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Site{}, fmt.Errorf("site %d: %w", siteID, ErrSiteNotFound)
	}
	if err != nil {
		return model.Site{}, fmt.Errorf("set visit for site %d: %w", siteID, err)
	}
	p.publish(Event{Type: EventSiteUpdated, Site: site})
	return site, nil
}

func (p *Postgres) RemoveSite(ctx context.Context, id int64) error {
	var site model.Site
	err := pgx.BeginFunc(ctx, p.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, deleteHistorySQL, id); err != nil {
			return fmt.Errorf("delete history: %w", err)
		}
		var err error
		site, err = scanSite(tx.QueryRow(ctx, deleteSiteSQL, id))
		return err
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("site %d: %w", id, ErrSiteNotFound)
	}
	if err != nil {
		return fmt.Errorf("remove site %d: %w", id, err)
	}
	p.publish(Event{Type: EventSiteRemoved, Site: site})
	return nil
}

func (p *Postgres) VisitHistory(ctx context.Context, siteID int64) ([]model.VisitRecord, error) {
	if _, err := p.Site(ctx, siteID); err != nil {
		return nil, err
	}
	rows, err := p.pool.Query(ctx, visitHistorySQL, siteID)
	if err != nil {
		return nil, fmt.Errorf("visit history for site %d: %w", siteID, err)
	}
	defer rows.Close()

	var out []model.VisitRecord
	for rows.Next() {
		var (
			r      model.VisitRecord
			status string
		)
		if err := rows.Scan(&r.ID, &r.SiteID, &r.SiteName, &status, &r.RecordedDate); err != nil {
			return nil, fmt.Errorf("scan visit: %w", err)
		}
		r.Status = model.VisitStatus(status)
		out = append(out, r)
	}
	return out, rows.Err()
}

func scanGroup(row pgx.Row) (model.Group, error) {
	var (
		g    model.Group
		days int
	)
	if err := row.Scan(&g.ID, &g.Name, &days); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Group{}, err
		}
		return model.Group{}, fmt.Errorf("scan group: %w", err)
	}
	g.Window = time.Duration(days) * 24 * time.Hour
	return g, nil
}

func scanSite(row pgx.Row) (model.Site, error) {
	var (
		s     model.Site
		visit string
		seen  *time.Time
	)
	if err := row.Scan(&s.ID, &s.Name, &s.GroupID, &s.Username, &s.DisplayName, &visit, &seen, &s.Geometry); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Site{}, err
		}
		return model.Site{}, fmt.Errorf("scan site: %w", err)
	}
	s.Visit = model.VisitStatus(visit)
	if seen != nil {
		s.SeenDate = *seen
	}
	return s, nil
}
