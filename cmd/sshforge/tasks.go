// Copyright (c) 2025 Veidt
// SSHForge - SSH setup, access and monitoring toolkit
// This source code is licensed under the MIT license found in the LICENSE file.

package main

import (
	"fmt"
	"sync"

	"github.com/veidt/sshforge/internal/db"
	"github.com/veidt/sshforge/internal/i18n"
	"github.com/veidt/sshforge/internal/model"
)

// parallelTask defines a generic task to be executed in parallel across
// multiple hosts. It holds configuration for messaging, audit logging,
// and the core task function to be executed.
type parallelTask struct {
	name       string // e.g., "connectivity check"
	successLog string // e.g., "CHECK_SUCCESS"
	failLog    string // e.g., "CHECK_FAIL"
	// taskFunc runs against one host and returns the line to print for it.
	taskFunc func(model.Host) (string, error)
}

// runParallelTasks executes a given task concurrently for a list of
// hosts. It uses a wait group to manage goroutines and a channel to
// collect results, printing status messages as tasks complete. The
// returned count is the number of failed hosts.
func runParallelTasks(hosts []model.Host, task parallelTask) int {
	if len(hosts) == 0 {
		fmt.Println(i18n.T("parallel_task.no_hosts", task.name))
		return 0
	}

	fmt.Println(i18n.T("parallel_task.start_message", task.name, len(hosts)))

	var wg sync.WaitGroup
	results := make(chan string, len(hosts))
	var mu sync.Mutex
	failed := 0

	for _, h := range hosts {
		wg.Add(1)
		go func(host model.Host) {
			defer wg.Done()
			msg, err := task.taskFunc(host)
			details := fmt.Sprintf("host: %s", host.String())
			if err != nil {
				mu.Lock()
				failed++
				mu.Unlock()
				results <- msg
				_ = db.LogAction(task.failLog, fmt.Sprintf("%s, error: %v", details, err))
			} else {
				results <- msg
				_ = db.LogAction(task.successLog, details)
			}
		}(h)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	for res := range results {
		fmt.Println(res)
	}
	fmt.Println("\n" + i18n.T("parallel_task.complete_message", task.name))
	return failed
}
