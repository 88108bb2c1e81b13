package table

import (
	"image"
	"image/color"
	"testing"

	"poolmind/internal/geom"
)

func testTable(t *testing.T) *Table {
	t.Helper()
	tbl, err := New(Config{Width: 2000, Height: 1000, Margin: 30, PocketRadius: 36})
	if err != nil {
		t.Fatal(err)
	}
	return tbl
}

func TestPocketLayout(t *testing.T) {
	tbl := testTable(t)
	pockets := tbl.Pockets()
	if len(pockets) != 6 {
		t.Fatalf("expected 6 pockets, got %d", len(pockets))
	}
	want := []geom.Point{
		{X: 30, Y: 30}, {X: 1000, Y: 30}, {X: 1970, Y: 30},
		{X: 1970, Y: 970}, {X: 1000, Y: 970}, {X: 30, Y: 970},
	}
	for i, z := range pockets {
		if z.Center != want[i] {
			t.Errorf("pocket %d at %+v, want %+v", i, z.Center, want[i])
		}
	}
}

func TestZoneMembershipInclusive(t *testing.T) {
	z := Zone{Name: "test", Center: geom.Point{X: 50, Y: 50}, Radius: 30}
	if !z.Contains(geom.Point{X: 80, Y: 50}, 1.0) {
		t.Error("boundary point must be inside (inclusive convention)")
	}
	if z.Contains(geom.Point{X: 81, Y: 50}, 1.0) {
		t.Error("point just outside must not be inside")
	}
	if !z.Contains(geom.Point{X: 85, Y: 50}, 1.2) {
		t.Error("slop must widen the effective radius")
	}
}

func TestZoneAtPicksNearest(t *testing.T) {
	tbl := testTable(t)
	z, ok := tbl.ZoneAt(geom.Point{X: 40, Y: 40}, 1.0)
	if !ok || z.Name != "top-left" {
		t.Fatalf("got %v ok=%v", z.Name, ok)
	}
	if _, ok := tbl.ZoneAt(geom.Point{X: 500, Y: 500}, 1.0); ok {
		t.Fatal("open table point must not belong to a zone")
	}
}

func TestRectifyRecoversKnownPixel(t *testing.T) {
	tbl, err := New(Config{Width: 200, Height: 100, Margin: 10, PocketRadius: 8})
	if err != nil {
		t.Fatal(err)
	}

	// Camera view of the table occupying a sub-rectangle of the frame.
	src := image.NewRGBA(image.Rect(0, 0, 400, 300))
	h, err := geom.Solve(
		[]geom.Point{{X: 50, Y: 40}, {X: 350, Y: 45}, {X: 355, Y: 240}, {X: 45, Y: 245}},
		[]geom.Point{{X: 0, Y: 0}, {X: 199, Y: 0}, {X: 199, Y: 99}, {X: 0, Y: 99}},
	)
	if err != nil {
		t.Fatal(err)
	}
	inv, err := h.Inverse()
	if err != nil {
		t.Fatal(err)
	}

	// Paint the camera pixel that canonical (100, 50) maps back to.
	camera := inv.Apply(geom.Point{X: 100, Y: 50})
	src.SetRGBA(int(camera.X+0.5), int(camera.Y+0.5), color.RGBA{255, 0, 0, 255})

	out := tbl.Rectify(src, inv)
	got := out.RGBAAt(100, 50)
	if got.R != 255 || got.G != 0 || got.B != 0 {
		t.Fatalf("canonical (100,50) = %+v, want red", got)
	}
	if out.Bounds().Dx() != 200 || out.Bounds().Dy() != 100 {
		t.Fatalf("canonical size %v", out.Bounds())
	}
}
