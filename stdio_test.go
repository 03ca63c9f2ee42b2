package mcp_test

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/jpowersdev/gomcp"
)

func TestStdIORoundTrip(t *testing.T) {
	sessions := mcp.NewSessionStore()
	adapter := mcp.NewProtocolAdapter(
		mcp.Info{Name: "test-server", Version: "1.0.0"},
		sessions,
		mcp.WithToolServer(&mockToolServer{}),
	)
	broker := mcp.NewBroker(sessions, adapter, "/messages")
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = broker.Shutdown(ctx)
	})

	inReader, inWriter := io.Pipe()
	outReader, outWriter := io.Pipe()
	t.Cleanup(func() {
		inWriter.Close()
		outReader.Close()
	})

	stdIO := mcp.NewStdIO(inReader, outWriter, sessions, broker)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runDone := make(chan error, 1)
	go func() {
		runDone <- stdIO.Run(ctx)
	}()

	send := func(msg mcp.JSONRPCMessage) {
		t.Helper()
		data, err := json.Marshal(msg)
		if err != nil {
			t.Fatalf("failed to marshal message: %v", err)
		}
		if _, err := fmt.Fprintf(inWriter, "%s\n", data); err != nil {
			t.Fatalf("failed to write message: %v", err)
		}
	}

	out := bufio.NewReader(outReader)
	receive := func() mcp.JSONRPCMessage {
		t.Helper()
		lines := make(chan string, 1)
		errs := make(chan error, 1)
		go func() {
			line, err := out.ReadString('\n')
			if err != nil {
				errs <- err
				return
			}
			lines <- line
		}()
		select {
		case line := <-lines:
			var msg mcp.JSONRPCMessage
			if err := json.Unmarshal([]byte(line), &msg); err != nil {
				t.Fatalf("failed to unmarshal line %q: %v", line, err)
			}
			return msg
		case err := <-errs:
			t.Fatalf("failed to read line: %v", err)
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for output line")
		}
		return mcp.JSONRPCMessage{}
	}

	send(request("1", mcp.MethodInitialize, nil))

	reply := receive()
	if reply.ID != mcp.MustString("1") {
		t.Errorf("reply ID = %s, want 1", reply.ID)
	}
	if !strings.Contains(string(reply.Result), "protocolVersion") {
		t.Errorf("initialize result missing protocolVersion: %s", reply.Result)
	}

	send(notification(mcp.MethodNotificationsInitialized))
	send(request("2", mcp.MethodToolsList, nil))

	listReply := receive()
	if listReply.ID != mcp.MustString("2") {
		t.Errorf("reply ID = %s, want 2", listReply.ID)
	}
	if !strings.Contains(string(listReply.Result), "test_tool") {
		t.Errorf("tools/list result missing tools: %s", listReply.Result)
	}

	// EOF on stdin ends the session cleanly.
	inWriter.Close()

	select {
	case err := <-runDone:
		if err != nil {
			t.Errorf("Run() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for Run to return")
	}
}

func TestStdIOSkipsBlankAndMalformedLines(t *testing.T) {
	sessions := mcp.NewSessionStore()
	adapter := mcp.NewProtocolAdapter(
		mcp.Info{Name: "test-server", Version: "1.0.0"},
		sessions,
	)
	broker := mcp.NewBroker(sessions, adapter, "/messages")
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = broker.Shutdown(ctx)
	})

	inReader, inWriter := io.Pipe()
	outReader, outWriter := io.Pipe()
	t.Cleanup(func() {
		inWriter.Close()
		outReader.Close()
	})

	stdIO := mcp.NewStdIO(inReader, outWriter, sessions, broker)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runDone := make(chan error, 1)
	go func() {
		runDone <- stdIO.Run(ctx)
	}()

	// Blank and malformed lines are skipped, not fatal.
	input := "\nnot json\n" + `{"jsonrpc":"2.0","id":"1","method":"initialize"}` + "\n"
	if _, err := io.WriteString(inWriter, input); err != nil {
		t.Fatalf("failed to write input: %v", err)
	}

	line, err := bufio.NewReader(outReader).ReadString('\n')
	if err != nil {
		t.Fatalf("failed to read line: %v", err)
	}

	var reply mcp.JSONRPCMessage
	if err := json.Unmarshal([]byte(line), &reply); err != nil {
		t.Fatalf("failed to unmarshal line %q: %v", line, err)
	}
	if reply.ID != mcp.MustString("1") {
		t.Errorf("reply ID = %s, want 1", reply.ID)
	}

	inWriter.Close()

	select {
	case err := <-runDone:
		if err != nil {
			t.Errorf("Run() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for Run to return")
	}
}
