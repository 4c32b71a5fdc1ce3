package actions

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"sync"
	"testing"

	apperrors "github.com/tvcompanion/host/internal/errors"
)

// recorderApplier records applies and optionally fails them.
type recorderApplier struct {
	settings []appliedSetting
	configs  []appliedConfig
	err      error
}

type appliedSetting struct {
	name     string
	value    any
	category string
}

type appliedConfig struct {
	key, value, description string
}

func (r *recorderApplier) ApplySetting(_ context.Context, name string, value any, category string) error {
	if r.err != nil {
		return r.err
	}
	r.settings = append(r.settings, appliedSetting{name, value, category})
	return nil
}

func (r *recorderApplier) ApplyDeviceConfig(_ context.Context, key, value, description string) error {
	if r.err != nil {
		return r.err
	}
	r.configs = append(r.configs, appliedConfig{key, value, description})
	return nil
}

func testRegistry(applier Applier) *Registry {
	r := NewRegistry(applier)
	r.Register(&Action{
		Name: "backlight", Kind: KindSetting, Category: CategoryPicture, Min: 0, Max: 100,
	})
	r.Register(&Action{
		Name: "pictureMode", Kind: KindSetting, Category: CategoryPicture,
		EnumName: EnumPictureMode,
		Enum:     []string{"vivid", "normal", "cinema"},
	})
	r.Register(&Action{
		Name: "energySaving", Kind: KindSetting, Category: CategoryPicture,
		EnumName: "energySaving",
		Enum:     []string{"auto", "off", "min", "med", "max"},
	})
	r.Register(&Action{
		Name: "soundMode", Kind: KindSetting, Category: CategorySound,
		EnumName: "soundMode", Enum: []string{"standard", "movie"},
	})
	r.Register(&Action{
		Name: "motionPro" + DeviceConfigSuffix, Kind: KindDeviceConfig,
		Category: CategoryPicture, Enum: []string{"OFF", "Low", "Medium", "High"},
	})
	return r
}

func TestLookupIsCaseInsensitive(t *testing.T) {
	r := testRegistry(&recorderApplier{})
	if r.Lookup("BACKLIGHT") == nil {
		t.Error("Lookup(BACKLIGHT) = nil")
	}
	if r.Lookup("PictureMode") == nil {
		t.Error("Lookup(PictureMode) = nil")
	}
	if r.Lookup("nope") != nil {
		t.Error("Lookup(nope) != nil")
	}
}

func TestExecuteUnknownAction(t *testing.T) {
	r := testRegistry(&recorderApplier{})
	_, err := r.Execute(context.Background(), "nope", []string{"1"})
	if !apperrors.IsCode(err, apperrors.CodeActionNotFound) {
		t.Errorf("error code = %v, want %v", apperrors.GetCode(err), apperrors.CodeActionNotFound)
	}
}

func TestExecuteSettingSingleValue(t *testing.T) {
	applier := &recorderApplier{}
	r := testRegistry(applier)

	applied, err := r.Execute(context.Background(), "backlight", []string{"50"})
	if err != nil || !applied {
		t.Fatalf("Execute() = %v, %v, want true, nil", applied, err)
	}
	if len(applier.settings) != 1 {
		t.Fatalf("applies = %d, want 1", len(applier.settings))
	}
	got := applier.settings[0]
	if got.name != "backlight" || got.value != "50" || got.category != CategoryPicture {
		t.Errorf("applied %+v", got)
	}
}

func TestExecuteSettingMultiValueCoercion(t *testing.T) {
	applier := &recorderApplier{}
	r := testRegistry(applier)

	applied, err := r.Execute(context.Background(), "backlight", []string{"10", "20", "30"})
	if err != nil || !applied {
		t.Fatalf("Execute() = %v, %v, want true, nil", applied, err)
	}
	want := []int{10, 20, 30}
	if !reflect.DeepEqual(applier.settings[0].value, want) {
		t.Errorf("value = %v, want %v", applier.settings[0].value, want)
	}

	// A non-numeric member fails the whole coercion.
	_, err = r.Execute(context.Background(), "backlight", []string{"10", "x"})
	if !apperrors.IsCode(err, apperrors.CodeActionBadParameter) {
		t.Errorf("error code = %v, want %v", apperrors.GetCode(err), apperrors.CodeActionBadParameter)
	}
}

func TestExecuteSettingNoParamsIsNoOp(t *testing.T) {
	applier := &recorderApplier{}
	r := testRegistry(applier)

	applied, err := r.Execute(context.Background(), "backlight", nil)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if applied {
		t.Error("applied = true with no parameters, want false")
	}
	if len(applier.settings) != 0 {
		t.Errorf("applies = %d, want 0", len(applier.settings))
	}
}

func TestEnumOrdinalCache(t *testing.T) {
	r := testRegistry(&recorderApplier{})
	a := r.Lookup("energySaving")

	if _, err := r.Execute(context.Background(), "energySaving", []string{"med"}); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if a.Current != 3 {
		t.Errorf("Current = %d after applying med, want 3", a.Current)
	}

	// Enum matching is case-insensitive.
	if _, err := r.Execute(context.Background(), "energySaving", []string{"OFF"}); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if a.Current != 1 {
		t.Errorf("Current = %d after applying OFF, want 1", a.Current)
	}

	// An unparsable value leaves the cache unchanged.
	if _, err := r.Execute(context.Background(), "energySaving", []string{"turbo"}); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if a.Current != 1 {
		t.Errorf("Current = %d after unparsable value, want 1 (unchanged)", a.Current)
	}
}

func TestPictureFieldsSkipCacheUpdate(t *testing.T) {
	r := testRegistry(&recorderApplier{})
	a := r.Lookup("backlight")
	a.Current = 77

	if _, err := r.Execute(context.Background(), "backlight", []string{"50"}); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	// The cache is fed by the picture push channel, not the apply path.
	if a.Current != 77 {
		t.Errorf("Current = %d, want 77 (untouched)", a.Current)
	}
}

func TestExecuteDeviceConfig(t *testing.T) {
	applier := &recorderApplier{}
	r := testRegistry(applier)

	applied, err := r.Execute(context.Background(), "motionPro_config", []string{"medium"})
	if err != nil || !applied {
		t.Fatalf("Execute() = %v, %v, want true, nil", applied, err)
	}
	got := applier.configs[0]
	if got.key != "motionPro" {
		t.Errorf("key = %q, want motionPro (suffix stripped)", got.key)
	}
	if got.description != "Medium" {
		t.Errorf("description = %q, want Medium (enum member name)", got.description)
	}

	// A value the enum does not know keeps the raw value as description.
	if _, err := r.Execute(context.Background(), "motionPro_config", []string{"42"}); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if got := applier.configs[1].description; got != "42" {
		t.Errorf("description = %q, want 42", got)
	}
}

func TestExecuteApplyFailure(t *testing.T) {
	applier := &recorderApplier{err: errors.New("device said no")}
	r := testRegistry(applier)
	a := r.Lookup("energySaving")
	a.Current = 2

	applied, err := r.Execute(context.Background(), "energySaving", []string{"max"})
	if applied {
		t.Error("applied = true on failure")
	}
	if !apperrors.IsCode(err, apperrors.CodeActionApplyFailed) {
		t.Errorf("error code = %v, want %v", apperrors.GetCode(err), apperrors.CodeActionApplyFailed)
	}
	// Failed applies never touch the cache.
	if a.Current != 2 {
		t.Errorf("Current = %d after failed apply, want 2", a.Current)
	}
}

func TestQualityView(t *testing.T) {
	r := testRegistry(&recorderApplier{})
	got := r.Quality()

	names := make([]string, len(got))
	for i, a := range got {
		names[i] = a.Name
	}
	// backlight (positive range) and energySaving (non-primary enum)
	// qualify; pictureMode is the primary enum, soundMode is not a
	// picture setting, motionPro_config is not a setting.
	want := []string{"backlight", "energySaving"}
	if !reflect.DeepEqual(names, want) {
		t.Errorf("Quality() = %v, want %v", names, want)
	}
}

func TestQuickAccessView(t *testing.T) {
	r := NewRegistry(&recorderApplier{})
	for _, n := range []string{"backlight", "contrast", "brightness", "color", "soundMode"} {
		r.Register(&Action{Name: n, Kind: KindSetting, Category: CategoryPicture, Max: 100})
	}

	// An empty list selects the built-in default four.
	got := r.QuickAccess(nil)
	if len(got) != 4 || got[0].Name != "backlight" || got[3].Name != "color" {
		names := make([]string, len(got))
		for i, a := range got {
			names[i] = a.Name
		}
		t.Errorf("QuickAccess(nil) = %v", names)
	}

	// Explicit names resolve case-insensitively; unknown names are skipped.
	got = r.QuickAccess([]string{"SOUNDMODE", "ghost"})
	if len(got) != 1 || got[0].Name != "soundMode" {
		t.Errorf("QuickAccess() resolved %d actions", len(got))
	}
}

func TestConcurrentExecuteAndViews(t *testing.T) {
	r := testRegistry(&recorderApplier{})

	// The HTTP layer marshals the views while another request applies a
	// setting; the cached ordinal write must not race the marshal reads.
	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
			}
			if _, err := json.Marshal(r.All()); err != nil {
				t.Errorf("Marshal(All()) error = %v", err)
				return
			}
			if _, err := json.Marshal(r.Quality()); err != nil {
				t.Errorf("Marshal(Quality()) error = %v", err)
				return
			}
		}
	}()

	for i := 0; i < 200; i++ {
		if _, err := r.Execute(context.Background(), "energySaving", []string{"med"}); err != nil {
			t.Fatalf("Execute() error = %v", err)
		}
	}
	close(stop)
	wg.Wait()
}

func TestRegisterReplacesInPlace(t *testing.T) {
	r := testRegistry(&recorderApplier{})
	before := len(r.All())

	r.Register(&Action{Name: "Backlight", Kind: KindPreset})
	if got := len(r.All()); got != before {
		t.Errorf("actions = %d after replacing registration, want %d", got, before)
	}
	if r.Lookup("backlight").Kind != KindPreset {
		t.Error("replacement did not take effect")
	}
}
