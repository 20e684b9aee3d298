package xerrors

import (
	"errors"
	"testing"
)

func TestWrap(t *testing.T) {
	// nil 错误应返回 nil
	if err := Wrap(nil, "context"); err != nil {
		t.Errorf("Wrap(nil) = %v，期望 nil", err)
	}

	base := errors.New("connect refused")
	wrapped := Wrap(base, "stage 1")
	if wrapped == nil {
		t.Fatal("Wrap(err) = nil，期望非 nil")
	}
	if wrapped.Error() != "stage 1: connect refused" {
		t.Errorf("Wrap(err).Error() = %q，期望 %q", wrapped.Error(), "stage 1: connect refused")
	}

	// 应保留错误链
	if !errors.Is(wrapped, base) {
		t.Error("errors.Is(wrapped, base) = false，期望 true")
	}
}

func TestWrapf(t *testing.T) {
	if err := Wrapf(nil, "attempt %d", 3); err != nil {
		t.Errorf("Wrapf(nil) = %v，期望 nil", err)
	}

	base := errors.New("timeout")
	wrapped := Wrapf(base, "attempt %d", 3)
	if wrapped.Error() != "attempt 3: timeout" {
		t.Errorf("Wrapf(err).Error() = %q，期望 %q", wrapped.Error(), "attempt 3: timeout")
	}
}

func TestWithCode(t *testing.T) {
	if err := WithCode(nil, "CODE"); err != nil {
		t.Errorf("WithCode(nil) = %v，期望 nil", err)
	}

	base := errors.New("bad payload")
	coded := WithCode(base, "DECODE_FAILED")
	if coded.Error() != "[DECODE_FAILED] bad payload" {
		t.Errorf("WithCode(err).Error() = %q，期望 %q", coded.Error(), "[DECODE_FAILED] bad payload")
	}
	if code := GetCode(coded); code != "DECODE_FAILED" {
		t.Errorf("GetCode(coded) = %q，期望 %q", code, "DECODE_FAILED")
	}

	// 包装后的带码错误依然应有 code
	wrapped := Wrap(coded, "stage 2")
	if code := GetCode(wrapped); code != "DECODE_FAILED" {
		t.Errorf("GetCode(wrapped) = %q，期望 %q", code, "DECODE_FAILED")
	}

	// 不带码的错误应返回空字符串
	if code := GetCode(base); code != "" {
		t.Errorf("GetCode(base) = %q，期望空字符串", code)
	}
}

func TestMust(t *testing.T) {
	if v := Must(42, nil); v != 42 {
		t.Errorf("Must(42, nil) = %d，期望 42", v)
	}

	defer func() {
		if r := recover(); r == nil {
			t.Error("Must(_, err) 未触发 panic")
		}
	}()
	Must(0, errors.New("boom"))
}

func TestCollector(t *testing.T) {
	var c Collector

	if err := c.Err(); err != nil {
		t.Errorf("Collector.Err() = %v，期望 nil", err)
	}

	c.Collect(nil)
	err1 := errors.New("first")
	err2 := errors.New("second")
	c.Collect(err1)
	c.Collect(err2)

	// 应只保留第一个错误
	if err := c.Err(); err != err1 {
		t.Errorf("Collector.Err() = %v，期望 %v", err, err1)
	}
}

func TestCombine(t *testing.T) {
	if err := Combine(nil, nil); err != nil {
		t.Errorf("Combine(nil, nil) = %v，期望 nil", err)
	}

	err1 := errors.New("first")
	if err := Combine(nil, err1); err != err1 {
		t.Errorf("Combine(nil, err1) = %v，期望 %v", err, err1)
	}

	err2 := errors.New("second")
	combined := Combine(err1, err2)
	var multi *MultiError
	if !errors.As(combined, &multi) {
		t.Fatalf("Combine(err1, err2) 类型 = %T，期望 *MultiError", combined)
	}
	if len(multi.Errors) != 2 {
		t.Errorf("MultiError.Errors 长度 = %d，期望 2", len(multi.Errors))
	}
	if !errors.Is(combined, err2) {
		t.Error("errors.Is(combined, err2) = false，期望 true")
	}
}
