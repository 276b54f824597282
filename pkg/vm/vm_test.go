package vm

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kristofer/glox/pkg/heap"
)

func newVM() (*VM, *bytes.Buffer) {
	h := heap.New()
	vm := New(h)
	var out bytes.Buffer
	vm.Out = &out
	return vm, &out
}

func TestArithmeticPrecedence(t *testing.T) {
	vm, out := newVM()
	err := vm.Interpret("print 1 + 2 * 3;")
	require.NoError(t, err)
	require.Equal(t, "7\n", out.String())
}

func TestStringConcatenationInternsResult(t *testing.T) {
	vm, out := newVM()
	err := vm.Interpret(`print "foo" + "bar";`)
	require.NoError(t, err)
	require.Equal(t, "foobar\n", out.String())
}

func TestGlobalAndLocalVariables(t *testing.T) {
	vm, out := newVM()
	err := vm.Interpret(`
var x = 10;
{
  var y = 20;
  print x + y;
}
`)
	require.NoError(t, err)
	require.Equal(t, "30\n", out.String())
}

func TestIfElseBranchesChooseCorrectArm(t *testing.T) {
	vm, out := newVM()
	err := vm.Interpret(`
if (1 < 2) { print "yes"; } else { print "no"; }
`)
	require.NoError(t, err)
	require.Equal(t, "yes\n", out.String())
}

func TestWhileLoopAccumulates(t *testing.T) {
	vm, out := newVM()
	err := vm.Interpret(`
var i = 0;
var sum = 0;
while (i < 5) {
  sum = sum + i;
  i = i + 1;
}
print sum;
`)
	require.NoError(t, err)
	require.Equal(t, "10\n", out.String())
}

func TestForLoopDesugarsToWhile(t *testing.T) {
	vm, out := newVM()
	err := vm.Interpret(`
var total = 0;
for (var i = 0; i < 5; i = i + 1) {
  total = total + i;
}
print total;
`)
	require.NoError(t, err)
	require.Equal(t, "10\n", out.String())
}

func TestFunctionCallAndReturn(t *testing.T) {
	vm, out := newVM()
	err := vm.Interpret(`
fun add(a, b) {
  return a + b;
}
print add(3, 4);
`)
	require.NoError(t, err)
	require.Equal(t, "7\n", out.String())
}

func TestClosureCapturesByReference(t *testing.T) {
	vm, out := newVM()
	err := vm.Interpret(`
fun makeCounter() {
  var count = 0;
  fun increment() {
    count = count + 1;
    return count;
  }
  return increment;
}
var counter = makeCounter();
print counter();
print counter();
print counter();
`)
	require.NoError(t, err)
	require.Equal(t, "1\n2\n3\n", out.String())
}

func TestClassInstantiationAndMethods(t *testing.T) {
	vm, out := newVM()
	err := vm.Interpret(`
class Greeter {
  init(name) {
    this.name = name;
  }
  greet() {
    print "hello, " + this.name;
  }
}
var g = Greeter("world");
g.greet();
`)
	require.NoError(t, err)
	require.Equal(t, "hello, world\n", out.String())
}

func TestInheritanceAndSuperCall(t *testing.T) {
	vm, out := newVM()
	err := vm.Interpret(`
class Animal {
  speak() {
    print "...";
  }
}
class Dog < Animal {
  speak() {
    super.speak();
    print "woof";
  }
}
Dog().speak();
`)
	require.NoError(t, err)
	require.Equal(t, "...\nwoof\n", out.String())
}

func TestInitializerAlwaysReturnsReceiver(t *testing.T) {
	vm, out := newVM()
	err := vm.Interpret(`
class Box {
  init() {
    return;
  }
}
var b = Box();
print b.init();
`)
	require.NoError(t, err)
	require.Equal(t, "Box instance\n", out.String())
}

func TestRuntimeErrorUndefinedVariable(t *testing.T) {
	vm, _ := newVM()
	err := vm.Interpret("print undefinedThing;")
	require.Error(t, err)
	require.Contains(t, err.Error(), "undefined variable")
}

func TestRuntimeErrorDivideByZeroIsNotATypeError(t *testing.T) {
	vm, out := newVM()
	err := vm.Interpret("print 1 / 0;")
	require.NoError(t, err)
	require.Equal(t, "inf\n", out.String())
}

func TestRuntimeErrorCallingNonCallable(t *testing.T) {
	vm, _ := newVM()
	err := vm.Interpret("var x = 1; x();")
	require.Error(t, err)
	require.Contains(t, err.Error(), "can only call")
}

func TestStackOverflowOnDeepRecursion(t *testing.T) {
	vm, _ := newVM()
	err := vm.Interpret(`
fun recurse() {
  return recurse();
}
recurse();
`)
	require.Error(t, err)
	require.Contains(t, err.Error(), "stack overflow")
}

func TestNativeStrConvertsAnyValue(t *testing.T) {
	vm, out := newVM()
	err := vm.Interpret(`print str(42);`)
	require.NoError(t, err)
	require.Equal(t, "42\n", out.String())
}

func TestNativeClockReturnsNumber(t *testing.T) {
	vm, out := newVM()
	err := vm.Interpret(`print clock() >= 0;`)
	require.NoError(t, err)
	require.Equal(t, "true\n", out.String())
}

// TestGCStressSurvivesManyShortLivedStringsWhileHoldingOneLiveRef is
// §8 end-to-end scenario 6: collect on every allocation while a loop
// churns through 10,000 short-lived strings and exactly one survives
// past the loop. The program must finish, and the live heap afterwards
// must reflect only what's still reachable, not the whole churn.
func TestGCStressSurvivesManyShortLivedStringsWhileHoldingOneLiveRef(t *testing.T) {
	h := heap.New()
	h.StressGC = true
	vm := New(h)
	var out bytes.Buffer
	vm.Out = &out

	err := vm.Interpret(`
var kept = "first";
var i = 0;
while (i < 10000) {
  var throwaway = str(i);
  kept = kept;
  i = i + 1;
}
print kept;
`)
	require.NoError(t, err)
	require.Equal(t, "first\n", out.String())
	require.Greater(t, h.Collections, 0)

	// The intern table should have shed the churned strings: only
	// "first", digit substrings reachable from no live root are gone,
	// and the live set stays small rather than growing with the loop.
	require.Less(t, h.BytesAllocated(), 4096)
}

// TestGCStressSurvivesClosureCreationWhileCapturingUpvalues exercises
// OP_CLOSURE's push-before-capture ordering (§4.4) under a
// collect-on-every-allocation stress mode: allocating each captured
// upvalue must not sweep the closure still being built, since nothing
// but the stack root keeps it alive until the loop finishes.
func TestGCStressSurvivesClosureCreationWhileCapturingUpvalues(t *testing.T) {
	h := heap.New()
	h.StressGC = true
	vm := New(h)
	var out bytes.Buffer
	vm.Out = &out

	err := vm.Interpret(`
fun makeCounter() {
  var count = 0;
  fun increment() {
    count = count + 1;
    return count;
  }
  return increment;
}
var counter = makeCounter();
print counter();
print counter();
print counter();
`)
	require.NoError(t, err)
	require.Equal(t, "1\n2\n3\n", out.String())
}
