package processor

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/airbusgeo/ardcube/common"
	"github.com/airbusgeo/ardcube/service"
	"go.uber.org/zap/zapcore"
)

type fakeEngine struct {
	invocations []Invocation
	err         error
}

func (e *fakeEngine) Run(ctx context.Context, inv Invocation) error {
	e.invocations = append(e.invocations, inv)
	return e.err
}

const template = `# FORCE parameter file
FILE_QUEUE = NULL
DIR_LEVEL2 = NULL
DIR_LOG = NULL
DIR_TEMP = NULL
FILE_DEM = NULL
DEM_NODATA = -32767
NPROC = 32
NTHREAD = 2
RESOLUTION_LANDSAT = 30
`

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestFillParameters(t *testing.T) {
	lines := strings.Split(strings.TrimSuffix(template, "\n"), "\n")
	out, err := FillParameters(lines, ParameterValues{
		FileQueue: "/data/level1/landsat8/pool.txt",
		DirLevel2: "/data/level2/landsat8",
		DirLog:    "/data/log/landsat8",
		DirTemp:   "/data/temp",
		FileDEM:   "/data/misc/dem/dem.tif",
		DEMNoData: -32768,
		NProc:     4,
		NThread:   1,
	})
	if err != nil {
		t.Fatal(err)
	}
	expected := []string{
		"# FORCE parameter file",
		"FILE_QUEUE = /data/level1/landsat8/pool.txt",
		"DIR_LEVEL2 = /data/level2/landsat8",
		"DIR_LOG = /data/log/landsat8",
		"DIR_TEMP = /data/temp",
		"FILE_DEM = /data/misc/dem/dem.tif",
		"DEM_NODATA = -32768",
		"NPROC = 4",
		"NTHREAD = 1",
		"RESOLUTION_LANDSAT = 30",
	}
	if !reflect.DeepEqual(out, expected) {
		t.Errorf("expected\n%v\ngot\n%v", expected, out)
	}
	if lines[1] != "FILE_QUEUE = NULL" {
		t.Errorf("template modified")
	}

	if _, err := FillParameters(append(lines, "NPROC = 2"), ParameterValues{}); !errors.Is(err, service.ErrInvalidParameterFile) {
		t.Errorf("duplicated field: expected ErrInvalidParameterFile, got %v", err)
	}
	if _, err := FillParameters(lines[:5], ParameterValues{}); !errors.Is(err, service.ErrInvalidParameterFile) {
		t.Errorf("missing field: expected ErrInvalidParameterFile, got %v", err)
	}
}

func TestWriteParameterFile(t *testing.T) {
	dir := t.TempDir()
	tmpl := filepath.Join(dir, "management", "settings", "force", "FORCE_default.prm")
	writeFile(t, tmpl, template)

	job := common.ProcessingJob{
		Sensor:    common.Landsat8,
		Level1Dir: filepath.Join(dir, "data", "level1", "landsat8"),
		Level2Dir: filepath.Join(dir, "data", "level2", "landsat8"),
		LogDir:    filepath.Join(dir, "data", "log", "landsat8"),
		TempDir:   filepath.Join(dir, "data", "temp"),
		DEMPath:   "/dem.tif",
		NProc:     8,
		NThread:   2,
	}
	now := time.Date(2021, 3, 15, 10, 4, 5, 0, time.UTC)
	path, err := WriteParameterFile(tmpl, filepath.Dir(tmpl), OpticalParameters(job), now)
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(path) != "FORCE_default__20210315T100405.prm" {
		t.Errorf("unexpected name %s", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "FILE_QUEUE = "+filepath.Join(job.Level1Dir, "pool.txt")+"\n") {
		t.Errorf("file queue not set:\n%s", data)
	}
	for _, d := range []string{job.Level2Dir, job.LogDir, job.TempDir} {
		if _, err := os.Stat(d); err != nil {
			t.Errorf("%s not created", d)
		}
	}
}

func TestReadQueueStatus(t *testing.T) {
	dir := t.TempDir()
	queue := filepath.Join(dir, "pool.txt")
	writeFile(t, queue, "/l1/LC08_A.tar DONE\n/l1/LC08_B.tar QUEUED\n/l1/LC08_C.tar QUEUED\n/l1/LC08_D.tar DONE")
	prm := filepath.Join(dir, "run.prm")
	writeFile(t, prm, "FILE_QUEUE = "+queue+"\nNPROC = 2\n")

	status, err := ReadQueueStatus(prm)
	if err != nil {
		t.Fatal(err)
	}
	if status.Path != queue || status.Done != 2 || status.Queued != 2 {
		t.Errorf("unexpected status %+v", status)
	}

	writeFile(t, prm, "NPROC = 2\n")
	if _, err := ReadQueueStatus(prm); !errors.Is(err, service.ErrInvalidParameterFile) {
		t.Errorf("expected ErrInvalidParameterFile, got %v", err)
	}
}

func TestLevel2(t *testing.T) {
	dir := t.TempDir()
	queue := filepath.Join(dir, "pool.txt")
	writeFile(t, queue, "/l1/LC08_B.tar QUEUED\n")
	prm := filepath.Join(dir, "run.prm")
	writeFile(t, prm, "FILE_QUEUE = "+queue+"\n")
	ctx := context.Background()

	engine := &fakeEngine{}
	var prompt string
	force := &Force{Engine: engine, Binds: []string{dir}, Confirmer: service.ConfirmFunc(func(ctx context.Context, p string) bool {
		prompt = p
		return true
	})}
	if err := force.Level2(ctx, prm); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(prompt, "1 scenes are marked as 'QUEUED'") {
		t.Errorf("unexpected prompt %s", prompt)
	}
	if len(engine.invocations) != 1 {
		t.Fatalf("expected 1 invocation, got %d", len(engine.invocations))
	}
	inv := engine.invocations[0]
	if inv.Image != ForceImage || !reflect.DeepEqual(inv.Args, []string{"force-level2", prm}) || !reflect.DeepEqual(inv.Binds, []string{dir}) {
		t.Errorf("unexpected invocation %+v", inv)
	}

	engine = &fakeEngine{}
	force = &Force{Engine: engine, Confirmer: service.AlwaysNo}
	if err := force.Level2(ctx, prm); !errors.Is(err, service.ErrCancelled) {
		t.Errorf("expected ErrCancelled, got %v", err)
	}
	if len(engine.invocations) != 0 {
		t.Errorf("force-level2 must not run")
	}
}

func TestDatacubeDir(t *testing.T) {
	dir := t.TempDir()
	if _, err := DatacubeDir(dir); err == nil {
		t.Errorf("expected error when not found")
	}
	writeFile(t, filepath.Join(dir, "cube", DatacubeDefinition), "")
	if d, err := DatacubeDir(dir); err != nil || d != filepath.Join(dir, "cube") {
		t.Errorf("unexpected %s (%v)", d, err)
	}
	writeFile(t, filepath.Join(dir, "other", DatacubeDefinition), "")
	if _, err := DatacubeDir(dir); err == nil {
		t.Errorf("expected error when found twice")
	}
}

func TestTabulateGrid(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "cube", DatacubeDefinition), "")
	engine := &fakeEngine{}
	force := &Force{Engine: engine, Confirmer: service.AlwaysYes}
	if err := force.TabulateGrid(context.Background(), dir, [4]float64{10.5, 50, 11, 50.25}); err != nil {
		t.Fatal(err)
	}
	expected := []string{"force-tabulate-grid", filepath.Join(dir, "cube"), "49", "51.25", "9.5", "12", "kml"}
	if !reflect.DeepEqual(engine.invocations[0].Args, expected) {
		t.Errorf("expected %v, got %v", expected, engine.invocations[0].Args)
	}
}

func TestCube(t *testing.T) {
	dir := t.TempDir()
	prj := filepath.Join(t.TempDir(), DatacubeDefinition)
	writeFile(t, prj, "GEOGCS")
	writeFile(t, filepath.Join(dir, "a", "S1A_20200601T053130_VV.tif"), "")
	writeFile(t, filepath.Join(dir, "b", "S1A_20200602T053130_VV.TIF"), "")
	ctx := context.Background()

	engine := &fakeEngine{}
	force := &Force{Engine: engine}
	if err := force.Cube(ctx, dir, CubeOptions{}); err == nil {
		t.Errorf("expected error without datacube definition")
	}
	if err := force.Cube(ctx, dir, CubeOptions{PrjFile: prj, Resolution: 10}); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(dir, DatacubeDefinition)); err != nil {
		t.Errorf("datacube definition not copied")
	}
	if len(engine.invocations) != 2 {
		t.Fatalf("expected 2 invocations, got %d", len(engine.invocations))
	}
	expected := []string{"force-cube", filepath.Join(dir, "a", "S1A_20200601T053130_VV.tif"), dir, "bilinear", "10"}
	if !reflect.DeepEqual(engine.invocations[0].Args, expected) {
		t.Errorf("expected %v, got %v", expected, engine.invocations[0].Args)
	}
	for _, f := range []string{"a/S1A_20200601T053130_VV.tif", "b/S1A_20200602T053130_VV.TIF"} {
		if _, err := os.Stat(filepath.Join(dir, f)); !os.IsNotExist(err) {
			t.Errorf("%s must be removed", f)
		}
	}

	engine.err = errors.New("failed")
	writeFile(t, filepath.Join(dir, "c", "S1A_20200603T053130_VV.tif"), "")
	if err := force.Cube(ctx, dir, CubeOptions{}); err == nil {
		t.Errorf("expected error")
	}
	if _, err := os.Stat(filepath.Join(dir, "c", "S1A_20200603T053130_VV.tif")); err != nil {
		t.Errorf("file must be kept on failure")
	}
}

func TestSingularityCommand(t *testing.T) {
	e := NewSingularityEngine("/project/management/singularity")
	cmd := e.Command(context.Background(), Invocation{
		Image: ForceImage,
		Args:  []string{"force-level2", "/p.prm"},
		Binds: []string{"/project", "/data"},
	})
	expected := []string{"singularity", "exec", "--cleanenv", "-B", "/project,/data", "/project/management/singularity/force.sif", "force-level2", "/p.prm"}
	if !reflect.DeepEqual(cmd.Args, expected) {
		t.Errorf("expected %v, got %v", expected, cmd.Args)
	}
	cmd = e.Command(context.Background(), Invocation{Image: PyroSARImage, Args: []string{"python", "dem.py"}})
	expected = []string{"singularity", "exec", "--cleanenv", "/project/management/singularity/pyrosar.sif", "python", "dem.py"}
	if !reflect.DeepEqual(cmd.Args, expected) {
		t.Errorf("expected %v, got %v", expected, cmd.Args)
	}
}

func TestProcess(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	engine := &fakeEngine{}
	p := New(Config{Engine: engine, Confirmer: service.AlwaysYes, ScriptDir: "/scripts"})

	job := common.ProcessingJob{
		Sensor:        common.Sentinel1,
		Level1Dir:     filepath.Join(dir, "level1"),
		Level2Dir:     filepath.Join(dir, "level2"),
		AOIPath:       "/aoi.gpkg",
		DEMPath:       "/dem.tif",
		DEMNoData:     -32767,
		Resolution:    20,
		Polarizations: []string{"VV", "VH"},
		Scaling:       "db",
		RefArea:       "gamma0",
	}
	if err := p.Process(ctx, job); err == nil {
		t.Errorf("expected error without level-1 directory")
	}
	if err := os.MkdirAll(job.Level1Dir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := p.Process(ctx, job); err != nil {
		t.Fatal(err)
	}
	expected := []string{"python", "/scripts/snap.py", job.Level1Dir, job.Level2Dir, "20", "VV,VH", "/aoi.gpkg", "db", "/dem.tif", "-32767", "False", "gamma0"}
	if inv := engine.invocations[0]; inv.Image != PyroSARImage || !reflect.DeepEqual(inv.Args, expected) {
		t.Errorf("expected %v, got %+v", expected, inv)
	}

	// optical without parameter file
	job.Sensor = common.Sentinel2
	if err := p.Process(ctx, job); !errors.Is(err, service.ErrMissingSetting) {
		t.Errorf("expected ErrMissingSetting, got %v", err)
	}
}

func TestLogFilters(t *testing.T) {
	pf := &PythonLogFilter{}
	if _, lvl, _ := pf.Filter("Number of scenes found: 2\n", zapcore.InfoLevel); lvl != zapcore.InfoLevel {
		t.Errorf("expected info, got %s", lvl)
	}
	if _, _, ignore := pf.Filter("   \n", zapcore.InfoLevel); !ignore {
		t.Errorf("empty lines must be ignored")
	}
	if _, lvl, _ := pf.Filter("RuntimeError: Temporary failure in name resolution", zapcore.InfoLevel); lvl != zapcore.ErrorLevel {
		t.Errorf("expected error, got %s", lvl)
	}
	err := pf.WrapError(errors.New("exit status 1"))
	if !strings.Contains(err.Error(), "Temporary failure") || !service.Temporary(err) {
		t.Errorf("expected temporary error, got %v", err)
	}

	ff := &ForceLogFilter{}
	if _, lvl, _ := ff.Filter("error: DEM file does not exist", zapcore.InfoLevel); lvl != zapcore.ErrorLevel {
		t.Errorf("expected error, got %s", lvl)
	}
	if _, lvl, _ := ff.Filter("Processing 12.5%", zapcore.InfoLevel); lvl != zapcore.DebugLevel {
		t.Errorf("expected debug, got %s", lvl)
	}
	if err := ff.WrapError(nil); err != nil {
		t.Errorf("nil error must stay nil")
	}
	if err := ff.WrapError(errors.New("exit status 1")); !strings.Contains(err.Error(), "DEM file does not exist") {
		t.Errorf("unexpected %v", err)
	}
}

func TestInvocationError(t *testing.T) {
	inv := Invocation{Image: ForceImage, Args: []string{"force-mosaic", "/cube"}, Filter: &ForceLogFilter{}}
	if err := invocationError(context.Background(), inv, nil); err != nil {
		t.Errorf("expected nil, got %v", err)
	}
	if err := invocationError(context.Background(), inv, errors.New("exit status 2")); !service.Fatal(err) {
		t.Errorf("expected fatal error, got %v", err)
	}
}

func TestDEMFileName(t *testing.T) {
	if n := DEMFileName("SRTM 1Sec HGT", "/p/data/misc/aoi/thuringia_4326.gpkg"); n != "SRTM 1Sec HGT__thuringia_4326.tif" {
		t.Errorf("unexpected %s", n)
	}
}
