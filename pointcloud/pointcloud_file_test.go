package pointcloud

import (
	"bytes"
	"strings"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"
)

func TestPCDRoundTripAscii(t *testing.T) {
	pc := NewSphereCloud(25, 1.5, r3.Vector{Y: -0.5})

	var buf bytes.Buffer
	test.That(t, ToPCD(pc, &buf, PCDAscii), test.ShouldBeNil)
	test.That(t, strings.Contains(buf.String(), "DATA ascii"), test.ShouldBeTrue)

	got, err := ReadPCD(&buf)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, got.Size(), test.ShouldEqual, pc.Size())
	for i := 0; i < pc.Size(); i++ {
		test.That(t, got.At(i).X, test.ShouldAlmostEqual, pc.At(i).X, 1e-5)
		test.That(t, got.At(i).Y, test.ShouldAlmostEqual, pc.At(i).Y, 1e-5)
		test.That(t, got.At(i).Z, test.ShouldAlmostEqual, pc.At(i).Z, 1e-5)
	}
}

func TestPCDRoundTripBinary(t *testing.T) {
	pc := NewCubeCloud(3, 4, r3.Vector{X: 10})

	var buf bytes.Buffer
	test.That(t, ToPCD(pc, &buf, PCDBinary), test.ShouldBeNil)

	got, err := ReadPCD(&buf)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, got.Size(), test.ShouldEqual, pc.Size())
	for i := 0; i < pc.Size(); i++ {
		// binary PCD stores float32
		test.That(t, got.At(i).X, test.ShouldAlmostEqual, pc.At(i).X, 1e-5)
		test.That(t, got.At(i).Y, test.ShouldAlmostEqual, pc.At(i).Y, 1e-5)
		test.That(t, got.At(i).Z, test.ShouldAlmostEqual, pc.At(i).Z, 1e-5)
	}
}

func TestReadPCDHeaderErrors(t *testing.T) {
	_, err := ReadPCD(strings.NewReader("VERSION .6\n"))
	test.That(t, err, test.ShouldNotBeNil)

	bad := "VERSION .7\n" +
		"FIELDS x y z rgb\n"
	_, err = ReadPCD(strings.NewReader(bad))
	test.That(t, err, test.ShouldNotBeNil)

	mismatch := "VERSION .7\n" +
		"FIELDS x y z\n" +
		"SIZE 4 4 4\n" +
		"TYPE F F F\n" +
		"COUNT 1 1 1\n" +
		"WIDTH 2\n" +
		"HEIGHT 1\n" +
		"VIEWPOINT 0 0 0 1 0 0 0\n" +
		"POINTS 3\n" +
		"DATA ascii\n"
	_, err = ReadPCD(strings.NewReader(mismatch))
	test.That(t, err, test.ShouldNotBeNil)
}

func TestReadPCDComments(t *testing.T) {
	in := "# generated for a test\n" +
		"VERSION .7\n" +
		"FIELDS x y z\n" +
		"SIZE 4 4 4\n" +
		"TYPE F F F\n" +
		"COUNT 1 1 1\n" +
		"WIDTH 2\n" +
		"HEIGHT 1\n" +
		"VIEWPOINT 0 0 0 1 0 0 0\n" +
		"POINTS 2\n" +
		"DATA ascii\n" +
		"1.5 0 -2\n" +
		"0 3 4\n"
	pc, err := ReadPCD(strings.NewReader(in))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, pc.Size(), test.ShouldEqual, 2)
	test.That(t, pc.At(0), test.ShouldResemble, r3.Vector{X: 1.5, Y: 0, Z: -2})
	test.That(t, pc.At(1), test.ShouldResemble, r3.Vector{X: 0, Y: 3, Z: 4})
}

func TestNewFromFileUnknownExtension(t *testing.T) {
	_, err := NewFromFile("cloud.xyz")
	test.That(t, err, test.ShouldNotBeNil)
}
