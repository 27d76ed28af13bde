package sqlinline

const QSelectCompletedSpend = `--sql 62d8f3b1-9c05-4e7a-842f-a1b60d59e327
select model_id, cost, created_at
from generations
where status = 'completed' and cost is not null;
`
