package sandbox

import (
	"context"
	"encoding/json"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datasense-ai/server/internal/chart"
	"github.com/datasense-ai/server/internal/dataset"
)

func TestValidatorRejects(t *testing.T) {
	v := Validator{MaxCodeBytes: 200}
	cases := map[string]string{
		"import":         "import os\nresult = 1",
		"from import":    "from pathlib import Path\nresult = 1",
		"dunder":         "result = df.__class__.__bases__",
		"open":           "result = open('/etc/passwd').read()",
		"eval":           "result = eval('1+1')",
		"os module":      "result = os.listdir('.')",
		"subprocess":     "subprocess.run(['ls'])",
		"read file":      "result = pd.read_csv('/etc/passwd')",
		"write file":     "df.to_csv('out.csv')",
		"write figure":   "px.bar(df).write_html('x.html')",
		"oversize":       "result = '" + strings.Repeat("a", 300) + "'",
		"getattr escape": "result = getattr(df, 'x')",
		"read alias":     "r = pd.read_csv\nresult = r('/etc/passwd', sep='\\x01')",
		"write alias":    "w = df.to_csv\nw('/tmp/out.csv')\nresult = 1",
		"inline alias":   "r = pd.read_csv ; result = r('/root/.env')",
		"spaced alias":   "r = pd . read_csv\nresult = r('x')",
		"figure alias":   "w = px.bar(df).write_html\nw('x.html')",
		"pandas io":      "p = pd.io\nresult = 1",
		"excel writer":   "w = pd.ExcelWriter\nresult = 1",
		"pd eval alias":  "e = pd.eval\nresult = e('1+1')",
	}
	for name, code := range cases {
		t.Run(name, func(t *testing.T) {
			assert.ErrorIs(t, v.Validate(code), ErrBlocked)
		})
	}
}

func TestValidatorAccepts(t *testing.T) {
	v := Validator{MaxCodeBytes: 50000}
	for _, code := range []string{
		"result = df['sales'].sum()",
		"fig = px.histogram(df, x='age')\nresult = {'age_distribution': fig}",
		"result = df.groupby('region')['sales'].mean().reset_index()",
		"result = df.query('sales > 10').eval('total = sales * 2')",
		"important = df['imports'].sum()\nresult = important",
	} {
		assert.NoError(t, v.Validate(code), code)
	}
	assert.ErrorIs(t, v.Validate("  \n"), ErrNoCode)
}

const figureJSON = `{"data":[{"type":"bar","x":["a"],"y":[1]}],"layout":{"title":{"text":"T"}}}`

func TestDecodeMappingKeepsOrder(t *testing.T) {
	raw := `{"ok":true,"result":{"type":"mapping","items":[
		{"key":"z_chart","value":{"type":"figure","figure":` + figureJSON + `}},
		{"key":"mean_sales","value":{"type":"scalar","value":12.5,"repr":"12.5"}},
		{"key":"a_chart","value":{"type":"figure","figure":` + figureJSON + `}}
	]}}`
	v, err := Decode([]byte(raw))
	require.NoError(t, err)

	m, ok := v.(Mapping)
	require.True(t, ok)
	require.Len(t, m, 3)
	assert.Equal(t, "z_chart", m[0].Key)
	assert.Equal(t, "a_chart", m[2].Key)
	assert.IsType(t, &chart.Figure{}, m[0].Value)
	assert.Equal(t, 12.5, m[1].Value)
	assert.Equal(t, "12.5", m[1].Repr)
	assert.Len(t, m.Figures(), 2)

	got, ok := m.Get("mean_sales")
	assert.True(t, ok)
	assert.Equal(t, 12.5, got)

	b, err := json.Marshal(Mapping{{Key: "b", Value: 1.0}, {Key: "a", Value: "x"}})
	require.NoError(t, err)
	assert.Equal(t, `{"b":1,"a":"x"}`, string(b))
}

func TestDecodeShapes(t *testing.T) {
	v, err := Decode([]byte(`{"ok":true,"result":{"type":"dataframe","columns":["region","sales"],"rows":[["North","10"],["South",""]]}}`))
	require.NoError(t, err)
	f, ok := v.(*dataset.Frame)
	require.True(t, ok)
	rows, cols := f.Shape()
	assert.Equal(t, 2, rows)
	assert.Equal(t, 2, cols)

	v, err = Decode([]byte(`{"ok":true,"result":{"type":"sequence","items":[{"type":"figure","figure":` + figureJSON + `},{"type":"figure","figure":` + figureJSON + `}]}}`))
	require.NoError(t, err)
	figs, ok := v.(Sequence).AllFigures()
	assert.True(t, ok)
	assert.Len(t, figs, 2)

	v, err = Decode([]byte(`{"ok":true,"result":{"type":"dataframe","columns":[],"rows":[]}}`))
	require.NoError(t, err)
	empty, ok := v.(*dataset.Frame)
	require.True(t, ok)
	_, _, err = empty.Column("sales")
	assert.ErrorIs(t, err, dataset.ErrColumnNotFound)

	v, err = Decode([]byte(`{"ok":true,"result":{"type":"none"}}`))
	require.NoError(t, err)
	assert.Nil(t, v)

	v, err = Decode([]byte(`{"ok":true,"result":{"type":"text","value":"hello"}}`))
	require.NoError(t, err)
	assert.Equal(t, "hello", v)

	_, err = Decode([]byte(`{"ok":true,"result":{"type":"spaceship"}}`))
	assert.Error(t, err)
}

func TestDecodeExecutionError(t *testing.T) {
	_, err := Decode([]byte(`{"ok":false,"error":"KeyError: 'profit'"}`))
	var execErr *ExecError
	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, "KeyError: 'profit'", execErr.Error())
}

func TestSequenceAllFigures(t *testing.T) {
	_, ok := Sequence{}.AllFigures()
	assert.False(t, ok)
	_, ok = Sequence{&chart.Figure{}, 1.0}.AllFigures()
	assert.False(t, ok)
}

// pythonEvaluator returns a real evaluator or skips when no interpreter with
// pandas and plotly is installed.
func pythonEvaluator(t *testing.T) *PythonEvaluator {
	t.Helper()
	path, err := exec.LookPath("python3")
	if err != nil {
		t.Skip("python3 not available")
	}
	if err := exec.Command(path, "-c", "import pandas, plotly").Run(); err != nil {
		t.Skip("pandas/plotly not installed")
	}
	p, err := NewPythonEvaluator(Config{Python: path, Timeout: 30 * time.Second, MaxCodeBytes: 50000})
	require.NoError(t, err)
	return p
}

func salesFrame(t *testing.T) *dataset.Frame {
	t.Helper()
	f, err := dataset.Load("sales.csv", strings.NewReader("region,sales\nNorth,10\nSouth,20\nEast,5\n"))
	require.NoError(t, err)
	return f
}

func TestPythonEvaluatorScalarAndMapping(t *testing.T) {
	p := pythonEvaluator(t)
	df := salesFrame(t)
	ctx := context.Background()

	v, err := p.Evaluate(ctx, "result = df['sales'].sum()", df)
	require.NoError(t, err)
	assert.Equal(t, 35.0, v)

	code := "fig1 = px.bar(df, x='region', y='sales', title='Sales')\n" +
		"fig2 = px.histogram(df, x='sales')\n" +
		"result = {'sales_chart': fig1, 'total': int(df['sales'].sum()), 'dist_chart': fig2}"
	v, err = p.Evaluate(ctx, code, df)
	require.NoError(t, err)
	m, ok := v.(Mapping)
	require.True(t, ok)
	assert.Equal(t, []string{"sales_chart", "total", "dist_chart"}, []string{m[0].Key, m[1].Key, m[2].Key})
	assert.Len(t, m.Figures(), 2)
}

func TestPythonEvaluatorErrorsAndIsolation(t *testing.T) {
	p := pythonEvaluator(t)
	df := salesFrame(t)
	ctx := context.Background()

	_, err := p.Evaluate(ctx, "result = df['profit']", df)
	var execErr *ExecError
	require.ErrorAs(t, err, &execErr)
	assert.Contains(t, execErr.Message, "KeyError")

	v, err := p.Evaluate(ctx, "x = 1", df)
	require.NoError(t, err)
	assert.Nil(t, v)

	// state from one evaluation is not visible to the next
	_, err = p.Evaluate(ctx, "leak = 41\nresult = leak", df)
	require.NoError(t, err)
	_, err = p.Evaluate(ctx, "result = leak + 1", df)
	require.ErrorAs(t, err, &execErr)
	assert.Contains(t, execErr.Message, "NameError")

	code := "result = df.groupby('region')['sales'].sum()"
	first, err := p.Evaluate(ctx, code, df)
	require.NoError(t, err)
	second, err := p.Evaluate(ctx, code, df)
	require.NoError(t, err)
	assert.IsType(t, &dataset.Frame{}, first)
	assert.Equal(t, first, second)
}

func TestPythonEvaluatorTimeout(t *testing.T) {
	p := pythonEvaluator(t)
	p.cfg.Timeout = 500 * time.Millisecond

	_, err := p.Evaluate(context.Background(), "while True:\n    pass", salesFrame(t))
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestPythonHarnessDisablesFileIO(t *testing.T) {
	p := pythonEvaluator(t)
	df := salesFrame(t)
	ctx := context.Background()

	// run skips the validator, so these reach the interpreter as written
	cases := map[string]string{
		"read alias":    "r = pd.read_csv\nresult = r('/etc/passwd')",
		"nested reader": "result = pd.io.parsers.read_csv('/etc/passwd')",
		"frame writer":  "w = df.to_csv\nw('leak.csv')\nresult = 1",
		"series writer": "df['sales'].to_json('leak.json')\nresult = 1",
		"excel writer":  "df.to_excel('leak.xlsx')\nresult = 1",
		"workbook":      "result = pd.ExcelWriter('leak.xlsx')",
		"figure writer": "px.bar(df, x='region', y='sales').write_html('leak.html')\nresult = 1",
	}
	for name, code := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := p.run(ctx, code, df)
			var execErr *ExecError
			require.ErrorAs(t, err, &execErr)
			assert.Regexp(t, `^(AttributeError|PermissionError)`, execErr.Message)
		})
	}

	v, err := p.run(ctx, "result = df.to_csv(index=False)", df)
	require.NoError(t, err)
	assert.Contains(t, v, "North,10")

	v, err = p.run(ctx, "result = pd.to_numeric(df['sales']).sum()", df)
	require.NoError(t, err)
	assert.Equal(t, 35.0, v)
}
