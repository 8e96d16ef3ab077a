package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"

	"fintrack/internal/analytics"
	"fintrack/internal/cache"
	"fintrack/internal/core"
	"fintrack/internal/ledger"
)

type (
	txView struct {
		ID          int64      `json:"id"`
		Owner       string     `json:"owner,omitempty"`
		Date        core.Date  `json:"date"`
		Description string     `json:"description"`
		Amount      core.Money `json:"amount"`
		Category    string     `json:"category"`
		Type        core.Kind  `json:"type"`
	}

	budgetView struct {
		ID        int64       `json:"id"`
		Owner     string      `json:"owner,omitempty"`
		Category  string      `json:"category"`
		Allocated core.Money  `json:"allocated"`
		Period    core.Period `json:"period"`
		Created   bool        `json:"created,omitempty"`
	}

	rollupView struct {
		analytics.BudgetRollup
		PercentUsed int64 `json:"percentUsed"`
		Overspent   bool  `json:"overspent"`
	}

	categoryView struct {
		ID          int64     `json:"id"`
		Name        string    `json:"name"`
		Type        core.Kind `json:"type"`
		Description string    `json:"description,omitempty"`
		Color       string    `json:"color,omitempty"`
	}

	monthView struct {
		Month    string     `json:"month"`
		Income   core.Money `json:"income"`
		Expenses core.Money `json:"expenses"`
	}

	reportView struct {
		Owner         string                    `json:"owner,omitempty"`
		From          core.Date                 `json:"from,omitempty"`
		To            core.Date                 `json:"to,omitempty"`
		Category      string                    `json:"category,omitempty"`
		TotalIncome   core.Money                `json:"totalIncome"`
		TotalExpenses core.Money                `json:"totalExpenses"`
		NetIncome     core.Money                `json:"netIncome"`
		Categories    []analytics.CategoryAmount `json:"categories"`
		Months        []monthView               `json:"months"`
	}
)

func viewTx(t core.Transaction) txView {
	return txView{
		ID:          t.ID,
		Owner:       t.Owner,
		Date:        t.Date,
		Description: t.Description,
		Amount:      t.Amount,
		Category:    t.Category,
		Type:        ledger.EffectiveKind(t),
	}
}

func viewBudget(b core.BudgetAllocation) budgetView {
	return budgetView{ID: b.ID, Owner: b.Owner, Category: b.Category, Allocated: b.Allocated, Period: b.Period}
}

func viewRollups(rs []analytics.BudgetRollup) []rollupView {
	out := make([]rollupView, 0, len(rs))
	for _, r := range rs {
		out = append(out, rollupView{BudgetRollup: r, PercentUsed: r.PercentUsed(), Overspent: r.Overspent()})
	}
	return out
}

func viewReport(scope cache.Scope, r analytics.Report) reportView {
	v := reportView{
		Owner:         scope.Owner,
		From:          scope.From,
		To:            scope.To,
		Category:      scope.Category,
		TotalIncome:   r.TotalIncome,
		TotalExpenses: r.TotalExpenses,
		NetIncome:     r.NetIncome,
		Categories:    r.RankedCategories(),
		Months:        []monthView{},
	}
	for _, m := range r.Months() {
		totals := r.Monthly[m]
		v.Months = append(v.Months, monthView{Month: m, Income: totals.Income, Expenses: totals.Expenses})
	}
	return v
}

func newFlagSet(name string, out io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(out)
	return fs
}

func invalid(field string, err error) error {
	return &core.ValidationError{Fields: map[string]string{field: err.Error()}}
}

// txFlags binds the editable transaction fields.
type txFlags struct {
	date, desc, amount, category, kind, owner *string
}

func bindTxFlags(fs *flag.FlagSet, defaultDate, defaultOwner string) txFlags {
	return txFlags{
		date:     fs.String("date", defaultDate, "date as YYYY-MM-DD"),
		desc:     fs.String("desc", "", "description"),
		amount:   fs.String("amount", "", "amount, negative for expenses unless -type is given"),
		category: fs.String("category", "", "category name"),
		kind:     fs.String("type", "", "income or expense"),
		owner:    fs.String("owner", defaultOwner, "owner of the record"),
	}
}

// apply overlays the flags that were set on t.
func (f txFlags) apply(fs *flag.FlagSet, t *core.Transaction, all bool) error {
	set := map[string]bool{}
	fs.Visit(func(fl *flag.Flag) { set[fl.Name] = true })
	use := func(name string) bool { return all || set[name] }

	if use("date") {
		d, err := core.ParseDate(*f.date)
		if err != nil {
			return invalid("date", err)
		}
		t.Date = d
	}
	if use("desc") {
		t.Description = strings.TrimSpace(*f.desc)
	}
	if use("amount") {
		m, err := core.ParseAmount(*f.amount)
		if err != nil {
			return invalid("amount", err)
		}
		t.Amount = m
	}
	if use("category") {
		t.Category = strings.TrimSpace(*f.category)
	}
	if use("type") {
		k, err := core.ParseKind(*f.kind)
		if err != nil {
			return invalid("type", err)
		}
		t.Kind = k
	}
	if use("owner") {
		t.Owner = strings.TrimSpace(*f.owner)
	}
	return nil
}

func runAdd(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("add", a.errOut)
	f := bindTxFlags(fs, a.now().Format("2006-01-02"), a.cfg.DefaultOwner)
	if err := fs.Parse(args); err != nil {
		return err
	}
	var t core.Transaction
	if err := f.apply(fs, &t, true); err != nil {
		return err
	}
	saved, err := a.svc.AddTransaction(ctx, t)
	if err != nil {
		return err
	}
	return a.print(viewTx(saved))
}

func runUpdate(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("update", a.errOut)
	id := fs.Int64("id", 0, "transaction id")
	f := bindTxFlags(fs, "", "")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *id <= 0 {
		return invalid("id", errors.New("id is required"))
	}
	t, err := a.store.Store.GetTransaction(ctx, *id)
	if err != nil {
		return err
	}
	if err := f.apply(fs, &t, false); err != nil {
		return err
	}
	if _, err := a.svc.UpdateTransaction(ctx, t); err != nil {
		return err
	}
	return a.print(viewTx(t))
}

func runDelete(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("delete", a.errOut)
	id := fs.Int64("id", 0, "transaction id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *id <= 0 {
		return invalid("id", errors.New("id is required"))
	}
	deleted, err := a.svc.DeleteTransaction(ctx, *id)
	if err != nil {
		return err
	}
	return a.print(viewTx(deleted))
}

// scopeFlags binds owner, date range, month and category selection.
type scopeFlags struct {
	owner, from, to, period, category *string
}

func bindScopeFlags(fs *flag.FlagSet, defaultOwner string) scopeFlags {
	return scopeFlags{
		owner:    fs.String("owner", defaultOwner, "owner, empty for everyone"),
		from:     fs.String("from", "", "first date (YYYY-MM-DD)"),
		to:       fs.String("to", "", "last date (YYYY-MM-DD)"),
		period:   fs.String("period", "", "month (YYYY-MM), overrides -from and -to"),
		category: fs.String("category", "", "category name"),
	}
}

func (f scopeFlags) scope() (cache.Scope, error) {
	s := cache.Scope{Owner: strings.TrimSpace(*f.owner), Category: strings.TrimSpace(*f.category)}
	if *f.period != "" {
		p, err := core.ParsePeriod(*f.period)
		if err != nil {
			return cache.Scope{}, invalid("period", err)
		}
		s.From, s.To = p.Start(), p.End()
		return s, nil
	}
	if *f.from != "" {
		d, err := core.ParseDate(*f.from)
		if err != nil {
			return cache.Scope{}, invalid("from", err)
		}
		s.From = d
	}
	if *f.to != "" {
		d, err := core.ParseDate(*f.to)
		if err != nil {
			return cache.Scope{}, invalid("to", err)
		}
		s.To = d
	}
	if !s.From.IsEmpty() && !s.To.IsEmpty() && s.To.Before(s.From.Time) {
		return cache.Scope{}, invalid("to", errors.New("must not be before -from"))
	}
	return s, nil
}

func runList(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("list", a.errOut)
	sf := bindScopeFlags(fs, a.cfg.DefaultOwner)
	kind := fs.String("type", "", "income or expense")
	limit := fs.Int("limit", 50, "records per page, 0 for all")
	page := fs.Int("page", 1, "page number, starting at 1")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *page < 1 {
		return invalid("page", errors.New("page must be at least 1"))
	}
	if *page > 1 && *limit <= 0 {
		return invalid("page", errors.New("paging needs a positive -limit"))
	}
	scope, err := sf.scope()
	if err != nil {
		return err
	}
	k, err := core.ParseKind(*kind)
	if err != nil {
		return invalid("type", err)
	}
	filter := scope.Filter()
	filter.Kind = k
	filter.Limit = *limit
	filter.Offset = (*page - 1) * *limit

	txs, err := a.store.Store.ListTransactions(ctx, filter)
	if err != nil {
		return err
	}
	out := make([]txView, 0, len(txs))
	for _, t := range txs {
		out = append(out, viewTx(t))
	}
	return a.print(out)
}

func runReport(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("report", a.errOut)
	sf := bindScopeFlags(fs, a.cfg.DefaultOwner)
	if err := fs.Parse(args); err != nil {
		return err
	}
	scope, err := sf.scope()
	if err != nil {
		return err
	}
	r, err := a.svc.Report(ctx, scope)
	if err != nil {
		return err
	}
	return a.print(viewReport(scope, r))
}

func parsePeriodFlag(s string) (core.Period, error) {
	if s == "" {
		return core.Period{}, invalid("period", errors.New("period is required (YYYY-MM)"))
	}
	p, err := core.ParsePeriod(s)
	if err != nil {
		return core.Period{}, invalid("period", err)
	}
	return p, nil
}

func runBudgets(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("budgets", a.errOut)
	owner := fs.String("owner", a.cfg.DefaultOwner, "owner, empty for everyone")
	period := fs.String("period", a.now().Format("2006-01"), "month (YYYY-MM)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	p, err := parsePeriodFlag(*period)
	if err != nil {
		return err
	}
	rs, err := a.svc.BudgetRollups(ctx, strings.TrimSpace(*owner), p)
	if err != nil {
		return err
	}
	return a.print(viewRollups(rs))
}

func runSetBudget(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("set-budget", a.errOut)
	owner := fs.String("owner", a.cfg.DefaultOwner, "owner of the budget")
	category := fs.String("category", "", "category name")
	amount := fs.String("amount", "", "allocated amount")
	period := fs.String("period", a.now().Format("2006-01"), "month (YYYY-MM)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	p, err := parsePeriodFlag(*period)
	if err != nil {
		return err
	}
	cents, err := core.ParseDecimalToCents(*amount)
	if err != nil {
		return invalid("budget", err)
	}
	saved, created, err := a.svc.SetBudget(ctx, core.BudgetAllocation{
		Owner:     strings.TrimSpace(*owner),
		Category:  strings.TrimSpace(*category),
		Allocated: core.Cents(cents),
		Period:    p,
	})
	if err != nil {
		return err
	}
	v := viewBudget(saved)
	v.Created = created
	return a.print(v)
}

func runDeleteBudget(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("delete-budget", a.errOut)
	id := fs.Int64("id", 0, "budget id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *id <= 0 {
		return invalid("id", errors.New("id is required"))
	}
	deleted, err := a.svc.DeleteBudget(ctx, *id)
	if err != nil {
		return err
	}
	return a.print(viewBudget(deleted))
}

func runCategories(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("categories", a.errOut)
	if err := fs.Parse(args); err != nil {
		return err
	}
	cats, err := a.store.Store.ListCategories(ctx)
	if err != nil {
		return err
	}
	out := make([]categoryView, 0, len(cats))
	for _, c := range cats {
		out = append(out, categoryView{ID: c.ID, Name: c.Name, Type: c.Kind, Description: c.Description, Color: c.Color})
	}
	return a.print(out)
}

func runAddCategory(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("add-category", a.errOut)
	name := fs.String("name", "", "category name")
	kind := fs.String("type", "both", "income, expense or both")
	desc := fs.String("description", "", "description")
	color := fs.String("color", "", "display color, e.g. #6366f1")
	if err := fs.Parse(args); err != nil {
		return err
	}
	c, err := a.svc.AddCategory(ctx, core.Category{
		Name:        strings.TrimSpace(*name),
		Kind:        core.Kind(strings.ToLower(strings.TrimSpace(*kind))),
		Description: strings.TrimSpace(*desc),
		Color:       strings.TrimSpace(*color),
	})
	if err != nil {
		return err
	}
	return a.print(categoryView{ID: c.ID, Name: c.Name, Type: c.Kind, Description: c.Description, Color: c.Color})
}

func runOverview(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("overview", a.errOut)
	owner := fs.String("owner", a.cfg.DefaultOwner, "owner, empty for everyone")
	period := fs.String("period", a.now().Format("2006-01"), "month (YYYY-MM)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	p, err := parsePeriodFlag(*period)
	if err != nil {
		return err
	}
	ov, err := a.svc.PeriodOverview(ctx, strings.TrimSpace(*owner), p)
	if err != nil {
		return err
	}
	return a.print(struct {
		Report  reportView   `json:"report"`
		Budgets []rollupView `json:"budgets"`
	}{
		Report:  viewReport(cache.PeriodScope(ov.Owner, ov.Period), ov.Report),
		Budgets: viewRollups(ov.Budgets),
	})
}

func runStats(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("stats", a.errOut)
	if err := fs.Parse(args); err != nil {
		return err
	}
	st, err := a.store.Store.Stats(ctx)
	if err != nil {
		return err
	}
	return a.print(struct {
		Backend string `json:"backend"`
		ledger.Stats
	}{a.cfg.DataBackend, st})
}

func runCheck(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("check", a.errOut)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := a.store.Store.Ping(ctx); err != nil {
		return fmt.Errorf("store unhealthy: %w", err)
	}
	return a.print(map[string]string{"status": "ok", "backend": a.cfg.DataBackend})
}
