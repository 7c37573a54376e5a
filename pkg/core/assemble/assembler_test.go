package assemble

import (
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finsheets/pkg/core/facts"
	"finsheets/pkg/core/reconcile"
	"finsheets/pkg/core/taxonomy"
)

func date(s string) time.Time {
	t, _ := time.Parse("2006-01-02", s)
	return t
}

func addDuration(t *testing.T, s *facts.Store, tag string, unit facts.Unit, value float64, start, end string, fp facts.FiscalPeriod) {
	t.Helper()
	f, err := facts.NewDurationFact(tag, unit, value, date(start), date(end), date(end).Year(), fp, "10-Q", date(end).AddDate(0, 1, 0))
	require.NoError(t, err)
	s.Add(f)
}

func addInstant(t *testing.T, s *facts.Store, tag string, value float64, end string, fp facts.FiscalPeriod) {
	t.Helper()
	f, err := facts.NewInstantFact(tag, facts.UnitUSD, value, date(end), date(end).Year(), fp, "10-K", date(end).AddDate(0, 1, 10))
	require.NoError(t, err)
	s.Add(f)
}

func pk(year int, p facts.FiscalPeriod) reconcile.PeriodKey {
	return reconcile.PeriodKey{Year: year, Period: p}
}

// quarterlyRevenueStore builds the standard Q4-plug scenario:
// Q1=100, Q2=120, Q3=110, FY=480, all in raw dollars.
func quarterlyRevenueStore(t *testing.T) *facts.Store {
	s := facts.NewStore()
	addDuration(t, s, "Revenues", facts.UnitUSD, 100e6, "2023-01-01", "2023-03-31", facts.Q1)
	addDuration(t, s, "Revenues", facts.UnitUSD, 120e6, "2023-04-01", "2023-06-30", facts.Q2)
	addDuration(t, s, "Revenues", facts.UnitUSD, 110e6, "2023-07-01", "2023-09-30", facts.Q3)
	addDuration(t, s, "Revenues", facts.UnitUSD, 480e6, "2023-01-01", "2023-12-31", facts.FY)
	return s
}

func TestQ4PlugFlowsIntoIncomeStatement(t *testing.T) {
	table, err := New(quarterlyRevenueStore(t), 2023, 2023).Assemble(taxonomy.IncomeStatement)
	require.NoError(t, err)

	// Raw dollars divided by 1e6; Q4 = 480 - 330 = 150, derived only for Q4.
	assert.Equal(t, Cell{Value: 100, Status: StatusReported}, table.Cell(pk(2023, facts.Q1), "revenue"))
	assert.Equal(t, Cell{Value: 120, Status: StatusReported}, table.Cell(pk(2023, facts.Q2), "revenue"))
	assert.Equal(t, Cell{Value: 110, Status: StatusReported}, table.Cell(pk(2023, facts.Q3), "revenue"))
	q4 := table.Cell(pk(2023, facts.Q4), "revenue")
	assert.InDelta(t, 150, q4.Value, 0.01)
	assert.Equal(t, StatusDerived, q4.Status)
	assert.Equal(t, Cell{Value: 480, Status: StatusReported}, table.Cell(pk(2023, facts.FY), "revenue"))
}

func TestInstantValueConvertedOnly(t *testing.T) {
	s := facts.NewStore()
	addInstant(t, s, "Assets", 5_250_000_000, "2023-12-31", facts.FY)

	table, err := New(s, 2023, 2023).Assemble(taxonomy.BalanceSheet)
	require.NoError(t, err)

	// 5.25B -> 5250.00 $MM, no derivation for instants.
	fy := table.Cell(pk(2023, facts.FY), "total_assets")
	assert.Equal(t, Cell{Value: 5250, Status: StatusReported}, fy)
	q4 := table.Cell(pk(2023, facts.Q4), "total_assets")
	assert.Equal(t, Cell{Value: 5250, Status: StatusReported}, q4)
}

func TestUnrecognizedUnitRecordedNotDropped(t *testing.T) {
	s := facts.NewStore()
	addDuration(t, s, "Revenues", facts.Unit("EUR"), 480e6, "2023-01-01", "2023-12-31", facts.FY)

	table, err := New(s, 2023, 2023).Assemble(taxonomy.IncomeStatement)
	require.NoError(t, err)

	cell := table.Cell(pk(2023, facts.FY), "revenue")
	assert.Equal(t, StatusMissing, cell.Status)
	assert.Contains(t, cell.Reason, "unrecognized unit")
	assert.Contains(t, cell.Reason, "EUR")
}

func TestMixedUnitAliasChainNotCoerced(t *testing.T) {
	s := facts.NewStore()
	// Current tag in dollars; the legacy alias filled 2022 in a unit with no
	// conversion path. The 2022 cell must fail on its own unit instead of
	// riding the dollar path of the newer periods.
	addDuration(t, s, "Revenues", facts.UnitUSD, 150e6, "2023-01-01", "2023-12-31", facts.FY)
	addDuration(t, s, "SalesRevenueNet", facts.Unit("EUR"), 120e6, "2022-01-01", "2022-12-31", facts.FY)

	table, err := New(s, 2022, 2023).Assemble(taxonomy.IncomeStatement)
	require.NoError(t, err)

	assert.Equal(t, Cell{Value: 150, Status: StatusReported}, table.Cell(pk(2023, facts.FY), "revenue"))

	cell := table.Cell(pk(2022, facts.FY), "revenue")
	assert.Equal(t, StatusMissing, cell.Status)
	assert.Contains(t, cell.Reason, "unrecognized unit")
	assert.Contains(t, cell.Reason, "EUR")
}

func TestGrossProfitPrefersReported(t *testing.T) {
	s := facts.NewStore()
	addDuration(t, s, "Revenues", facts.UnitUSD, 480e6, "2023-01-01", "2023-12-31", facts.FY)
	addDuration(t, s, "CostOfRevenue", facts.UnitUSD, 200e6, "2023-01-01", "2023-12-31", facts.FY)
	// Issuer also tags gross profit directly, with its own (different) value.
	addDuration(t, s, "GrossProfit", facts.UnitUSD, 275e6, "2023-01-01", "2023-12-31", facts.FY)

	table, err := New(s, 2023, 2023).Assemble(taxonomy.IncomeStatement)
	require.NoError(t, err)

	gp := table.Cell(pk(2023, facts.FY), "gross_profit")
	assert.Equal(t, Cell{Value: 275, Status: StatusReported}, gp, "reported gross profit wins over derivation")
}

func TestGrossProfitDerivedWhenUntagged(t *testing.T) {
	s := facts.NewStore()
	addDuration(t, s, "Revenues", facts.UnitUSD, 480e6, "2023-01-01", "2023-12-31", facts.FY)
	addDuration(t, s, "CostOfRevenue", facts.UnitUSD, 200e6, "2023-01-01", "2023-12-31", facts.FY)

	table, err := New(s, 2023, 2023).Assemble(taxonomy.IncomeStatement)
	require.NoError(t, err)

	gp := table.Cell(pk(2023, facts.FY), "gross_profit")
	assert.InDelta(t, 280, gp.Value, 0.01)
	assert.Equal(t, StatusDerived, gp.Status)
}

func TestEBITDAMissingWithoutDA(t *testing.T) {
	s := facts.NewStore()
	addDuration(t, s, "OperatingIncomeLoss", facts.UnitUSD, 90e6, "2023-01-01", "2023-12-31", facts.FY)

	table, err := New(s, 2023, 2023).Assemble(taxonomy.IncomeStatement)
	require.NoError(t, err)

	cell := table.Cell(pk(2023, facts.FY), "ebitda")
	assert.Equal(t, StatusMissing, cell.Status)
	assert.Equal(t, "D&A unavailable", cell.Reason)
}

func TestEBITDAFromOperatingIncomePlusDA(t *testing.T) {
	s := facts.NewStore()
	addDuration(t, s, "OperatingIncomeLoss", facts.UnitUSD, 90e6, "2023-01-01", "2023-12-31", facts.FY)
	addDuration(t, s, "DepreciationDepletionAndAmortization", facts.UnitUSD, 25e6, "2023-01-01", "2023-12-31", facts.FY)

	table, err := New(s, 2023, 2023).Assemble(taxonomy.IncomeStatement)
	require.NoError(t, err)

	cell := table.Cell(pk(2023, facts.FY), "ebitda")
	assert.InDelta(t, 115, cell.Value, 0.01)
	assert.Equal(t, StatusDerived, cell.Status)
}

func TestFreeCashFlow(t *testing.T) {
	s := facts.NewStore()
	addDuration(t, s, "NetCashProvidedByUsedInOperatingActivities", facts.UnitUSD, 140e6, "2023-01-01", "2023-12-31", facts.FY)
	addDuration(t, s, "PaymentsToAcquirePropertyPlantAndEquipment", facts.UnitUSD, 40e6, "2023-01-01", "2023-12-31", facts.FY)

	table, err := New(s, 2023, 2023).Assemble(taxonomy.CashFlow)
	require.NoError(t, err)

	cell := table.Cell(pk(2023, facts.FY), "free_cash_flow")
	assert.InDelta(t, 100, cell.Value, 0.01)
	assert.Equal(t, StatusDerived, cell.Status)
}

func TestSharesAndEPSUnits(t *testing.T) {
	s := facts.NewStore()
	addDuration(t, s, "EarningsPerShareBasic", facts.UnitUSDPerShare, 1.2345, "2023-01-01", "2023-12-31", facts.FY)
	addDuration(t, s, "WeightedAverageNumberOfSharesOutstandingBasic", facts.UnitShares, 1_234_567_890, "2023-01-01", "2023-12-31", facts.FY)

	table, err := New(s, 2023, 2023).Assemble(taxonomy.IncomeStatement)
	require.NoError(t, err)

	eps := table.Cell(pk(2023, facts.FY), "eps_basic")
	assert.Equal(t, 1.2345, eps.Value, "EPS stays in dollars")

	shares := table.Cell(pk(2023, facts.FY), "shares_basic")
	assert.Equal(t, 1234.568, shares.Value, "share counts in MM shares")
}

func TestAnnualOnlyIssuerQuarterlyTabAllMissing(t *testing.T) {
	s := facts.NewStore()
	addDuration(t, s, "Revenues", facts.UnitUSD, 480e6, "2023-01-01", "2023-12-31", facts.FY)

	table, err := New(s, 2023, 2023).Assemble(taxonomy.IncomeStatement)
	require.NoError(t, err)

	quarterly := table.Quarterly()
	require.Len(t, quarterly.Periods, 4)
	for _, p := range quarterly.Periods {
		for _, item := range quarterly.ItemKeys {
			assert.Equal(t, StatusMissing, quarterly.Cell(p, item).Status)
		}
	}

	annual := table.Annual()
	require.Len(t, annual.Periods, 1)
	assert.Equal(t, Cell{Value: 480, Status: StatusReported}, annual.Cell(pk(2023, facts.FY), "revenue"))
}

func TestIdempotence(t *testing.T) {
	build := func() *StatementTable {
		table, err := New(quarterlyRevenueStore(t), 2023, 2023).Assemble(taxonomy.IncomeStatement)
		require.NoError(t, err)
		return table
	}
	first := build()
	second := build()
	assert.True(t, reflect.DeepEqual(first.Cells, second.Cells))
	assert.Equal(t, first.Manifest(), second.Manifest())
}

func TestManifestCoversEveryCell(t *testing.T) {
	table, err := New(quarterlyRevenueStore(t), 2023, 2023).Assemble(taxonomy.IncomeStatement)
	require.NoError(t, err)

	manifest := table.Manifest()
	assert.Len(t, manifest, len(table.Periods)*len(table.ItemKeys))

	statuses := map[string]CellStatus{}
	for _, e := range manifest {
		statuses[e.Period+"/"+e.Item] = e.Status
	}
	assert.Equal(t, StatusDerived, statuses["2023Q4/revenue"], "statement marked derived for Q4 only")
	assert.Equal(t, StatusReported, statuses["2023Q1/revenue"])
	assert.Equal(t, StatusMissing, statuses["2023FY/income_tax"])
}
