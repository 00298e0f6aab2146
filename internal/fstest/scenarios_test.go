package fstest

import "testing"

func TestS1FormatCreateWriteReadRoundTrip(t *testing.T) { S1(t) }
func TestS2RemoveWhileOpen(t *testing.T)                { S2(t) }
func TestS3IndirectBlockBoundary(t *testing.T)           { S3(t) }
func TestS4RWLockWriterPriority(t *testing.T)            { S4(t) }
func TestS5UnbufferedChannelFanOut(t *testing.T)         { S5(t) }
func TestS6DemandLoadingPageFault(t *testing.T)          { S6(t) }
