package command

import "testing"

func TestDispatchPolicyBurstThenThrottle(t *testing.T) {
	p := NewDispatchPolicy(1, 2)

	if !p.Allow("machines/12/slots/34") {
		t.Fatal("first operation should be allowed")
	}
	if !p.Allow("machines/12/slots/34") {
		t.Fatal("second operation within burst should be allowed")
	}
	if p.Allow("machines/12/slots/34") {
		t.Error("third immediate operation should be throttled")
	}
}

func TestDispatchPolicyTargetsAreIndependent(t *testing.T) {
	p := NewDispatchPolicy(1, 1)

	if !p.Allow("machines/12/slots/34") {
		t.Fatal("first target should be allowed")
	}
	if !p.Allow("machines/12/slots/35") {
		t.Error("distinct target should have its own allowance")
	}
	if p.Allow("machines/12/slots/34") {
		t.Error("exhausted target should be throttled")
	}
}

func TestDispatchPolicyDefaults(t *testing.T) {
	p := NewDispatchPolicy(0, 0)
	for i := 0; i < 10; i++ {
		if !p.Allow("machines/1/reboot") {
			t.Fatalf("operation %d rejected under default burst", i)
		}
	}
}
